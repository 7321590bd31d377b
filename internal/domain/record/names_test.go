package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/widia-io/investiment-scrapper-v2/internal/domain/statement/section"
)

const (
	cdiRow = "15/09/21 15/09/21 15/09/26 100.000,00 CDI - 103,50 1,00 101.500,00 101.500,00 1.500,00 22,50 100.337,50 3,18 0,85 1,52"
	preRow = "02/05/22 02/05/22 02/05/24 50.000,00 PRE 13,90 1,00 52.100,00 52.100,00 0,00 20,00 52.100,00 1,63 0,91 4,20"
)

func resolve(t *testing.T, lines ...section.TaggedLine) []*Raw {
	t.Helper()
	out := NewResolver(NewParser()).Resolve(lines)
	require.NotEmpty(t, out)
	return out
}

func TestResolveNames(t *testing.T) {
	t.Run("takes the name from the line above", func(t *testing.T) {
		out := resolve(t,
			tagged(section.PosFixado, "BANCO BRADESCO S A"),
			tagged(section.PosFixado, cdiRow),
		)
		require.Len(t, out, 1)
		assert.Equal(t, "BANCO BRADESCO S A", Deref(out[0].Name))
	})

	t.Run("inline names win over fragments", func(t *testing.T) {
		out := resolve(t,
			tagged(section.PosFixado, "LETRA FINANCEIRA"),
			tagged(section.PosFixado, "CDB BANCO XPTO "+cdiRow),
		)
		require.Len(t, out, 1)
		assert.Equal(t, "CDB BANCO XPTO", Deref(out[0].Name))
	})

	t.Run("strips indexer tags bleeding onto name lines", func(t *testing.T) {
		out := resolve(t,
			tagged(section.PosFixado, "CDB BANCO DIGIMAIS CDI"),
			tagged(section.PosFixado, cdiRow),
		)
		require.Len(t, out, 1)
		assert.Equal(t, "CDB BANCO DIGIMAIS", Deref(out[0].Name))
	})

	t.Run("joins a multi-line name top to bottom", func(t *testing.T) {
		out := resolve(t,
			tagged(section.PosFixado, "LETRA FINANCEIRA SUBORDINADA"),
			tagged(section.PosFixado, "BANCO VOTORANTIM S A"),
			tagged(section.PosFixado, cdiRow),
		)
		require.Len(t, out, 1)
		assert.Equal(t, "LETRA FINANCEIRA SUBORDINADA BANCO VOTORANTIM S A", Deref(out[0].Name))
	})

	t.Run("appends the trailing continuation line", func(t *testing.T) {
		out := resolve(t,
			tagged(section.PreFixado, preRow),
			tagged(section.PreFixado, "BANCO FIBRA 250.000,00"),
		)
		require.Len(t, out, 1)
		assert.Equal(t, "BANCO FIBRA", Deref(out[0].Name))
	})

	t.Run("numeric remnants are not names", func(t *testing.T) {
		out := resolve(t,
			tagged(section.PreFixado, preRow),
			tagged(section.PreFixado, "1.234,56"),
		)
		require.Len(t, out, 1)
		assert.Nil(t, out[0].Name)
	})

	t.Run("a fragment never feeds two records", func(t *testing.T) {
		out := resolve(t,
			tagged(section.PosFixado, "BANCO ALFA"),
			tagged(section.PosFixado, cdiRow),
			tagged(section.PreFixado, preRow),
		)
		require.Len(t, out, 2)
		assert.Equal(t, "BANCO ALFA", Deref(out[0].Name))
		assert.Nil(t, out[1].Name)
	})

	t.Run("a fragment between rows belongs to the row below", func(t *testing.T) {
		out := resolve(t,
			tagged(section.PosFixado, cdiRow),
			tagged(section.PosFixado, "BANCO BETA"),
			tagged(section.PreFixado, preRow),
		)
		require.Len(t, out, 2)
		assert.Nil(t, out[0].Name)
		assert.Equal(t, "BANCO BETA", Deref(out[1].Name))
	})

	t.Run("records without names are kept", func(t *testing.T) {
		out := resolve(t, tagged(section.PosFixado, cdiRow))
		require.Len(t, out, 1)
		assert.Nil(t, out[0].Name)
		assert.Equal(t, "100.000,00", Deref(out[0].InitialAmount))
	})
}
