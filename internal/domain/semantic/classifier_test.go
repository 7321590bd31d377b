package semantic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/classify"
	"github.com/widia-io/investiment-scrapper-v2/internal/domain/statement/section"
)

func TestClassifyBatch(t *testing.T) {
	items := []classify.Item{
		{Name: "CRI - BROOKFIELD, VIA PORTFÓLIO GLP", Section: section.PosFixado},
		{Name: "KAPITALO K10 FIC MM", Section: section.Multi},
		{Name: "", Section: section.PreFixado},
	}

	t.Run("maps the returned array onto classifications in order", func(t *testing.T) {
		provider := &stubProvider{response: `[
			{"nome": "CRI - BROOKFIELD, VIA PORTFÓLIO GLP", "tipo_ativo": "renda_fixa", "categoria": "CRI"},
			{"nome": "KAPITALO K10 FIC MM", "tipo_ativo": "fundo_investimento", "categoria": "Fundo Multimercado"},
			{"nome": "Sem nome", "tipo_ativo": "renda_fixa", "categoria": "CDB"}
		]`}
		classifier := NewClassifier(provider, testLogger())

		results, err := classifier.ClassifyBatch(context.Background(), items)
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, classify.CategoryCRI, results[0].Category)
		assert.Equal(t, classify.AssetTypeRendaFixa, results[0].AssetType)
		assert.Equal(t, classify.SourceSemantic, results[0].Source)
		assert.Equal(t, classify.CategoryFundoMultimercado, results[1].Category)
		assert.Equal(t, classify.AssetTypeFundo, results[1].AssetType)
		assert.Equal(t, classify.CategoryCDB, results[2].Category)
	})

	t.Run("prompt lists every position with its section", func(t *testing.T) {
		provider := &stubProvider{response: `[{}, {}, {}]`}
		classifier := NewClassifier(provider, testLogger())

		_, err := classifier.ClassifyBatch(context.Background(), items)
		require.NoError(t, err)
		require.Len(t, provider.prompts, 1)

		prompt := provider.prompts[0]
		assert.Contains(t, prompt, "CRI - BROOKFIELD, VIA PORTFÓLIO GLP")
		assert.Contains(t, prompt, "PÓS-FIXADO")
		assert.Contains(t, prompt, "MULTIMERCADOS")
		assert.Contains(t, prompt, "Sem nome")
		assert.Contains(t, prompt, "REGRAS")
	})

	t.Run("loose asset type spellings are folded", func(t *testing.T) {
		provider := &stubProvider{response: `[
			{"tipo_ativo": "Renda Fixa", "categoria": "LCA"},
			{"tipo_ativo": "Fundo", "categoria": "Fundo Multimercado"},
			{"tipo_ativo": "cripto", "categoria": "Bitcoin"}
		]`}
		classifier := NewClassifier(provider, testLogger())

		results, err := classifier.ClassifyBatch(context.Background(), items)
		require.NoError(t, err)
		assert.Equal(t, classify.AssetTypeRendaFixa, results[0].AssetType)
		assert.Equal(t, classify.AssetTypeFundo, results[1].AssetType)
		assert.Equal(t, "", results[2].AssetType)
		assert.Equal(t, "Bitcoin", results[2].Category)
	})

	t.Run("count mismatch is an error", func(t *testing.T) {
		provider := &stubProvider{response: `[{"categoria": "CRI"}]`}
		classifier := NewClassifier(provider, testLogger())

		_, err := classifier.ClassifyBatch(context.Background(), items)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 results for 3 positions")
	})

	t.Run("provider failure surfaces as an error", func(t *testing.T) {
		provider := &stubProvider{err: errors.New("quota exhausted")}
		classifier := NewClassifier(provider, testLogger())

		_, err := classifier.ClassifyBatch(context.Background(), items)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "semantic classification")
	})

	t.Run("no positions means no model call", func(t *testing.T) {
		provider := &stubProvider{response: `[]`}
		classifier := NewClassifier(provider, testLogger())

		results, err := classifier.ClassifyBatch(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, results)
		assert.Empty(t, provider.prompts)
	})
}
