package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	receitaWSBaseURL = "https://www.receitaws.com.br/v1/cnpj"
	brasilAPIBaseURL = "https://brasilapi.com.br/api/cnpj/v1"

	registryTimeout  = 10 * time.Second
	rateLimitBackoff = 60 * time.Second
)

// registry queries the public CNPJ registries. ReceitaWS is primary and
// throttles anonymous clients to a few requests per minute, so calls go
// through a limiter; BrasilAPI is the fallback.
type registry struct {
	client     *http.Client
	limiter    *rate.Limiter
	receitaURL string
	brasilURL  string
	backoff    time.Duration
	logger     *slog.Logger
}

func newRegistry(requestsPerMinute int, logger *slog.Logger) *registry {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 3
	}
	return &registry{
		client:     &http.Client{Timeout: registryTimeout},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1),
		receitaURL: receitaWSBaseURL,
		brasilURL:  brasilAPIBaseURL,
		backoff:    rateLimitBackoff,
		logger:     logger,
	}
}

func (r *registry) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return r.client.Do(req)
}

type receitaWSResponse struct {
	Status   string `json:"status"`
	Nome     string `json:"nome"`
	Situacao string `json:"situacao"`
}

// lookupReceitaWS validates a candidate CNPJ against ReceitaWS. A nil
// Issuer with a nil error means the registry does not know the CNPJ.
func (r *registry) lookupReceitaWS(ctx context.Context, cnpj string) (*Issuer, error) {
	digits := cleanCNPJ(cnpj)
	if len(digits) != 14 {
		return nil, nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := r.get(ctx, r.receitaURL+"/"+digits)
	if err != nil {
		return nil, fmt.Errorf("receitaws request failed: %w", err)
	}

	// Throttled: wait out the penalty window and retry once.
	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		r.logger.Warn("receitaws rate limited, backing off", "wait", r.backoff)
		select {
		case <-time.After(r.backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if resp, err = r.get(ctx, r.receitaURL+"/"+digits); err != nil {
			return nil, fmt.Errorf("receitaws request failed: %w", err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var body receitaWSResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to parse receitaws response: %w", err)
	}
	if body.Status == "ERROR" {
		return nil, nil
	}

	return &Issuer{
		CNPJ:      formatCNPJ(digits),
		LegalName: body.Nome,
		Status:    body.Situacao,
		Source:    SourceReceitaWS,
	}, nil
}

type brasilAPIResponse struct {
	RazaoSocial string `json:"razao_social"`
	Situacao    string `json:"descricao_situacao_cadastral"`
}

// lookupBrasilAPI validates a candidate CNPJ against BrasilAPI.
func (r *registry) lookupBrasilAPI(ctx context.Context, cnpj string) (*Issuer, error) {
	digits := cleanCNPJ(cnpj)
	if len(digits) != 14 {
		return nil, nil
	}

	resp, err := r.get(ctx, r.brasilURL+"/"+digits)
	if err != nil {
		return nil, fmt.Errorf("brasilapi request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var body brasilAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to parse brasilapi response: %w", err)
	}

	return &Issuer{
		CNPJ:      formatCNPJ(digits),
		LegalName: body.RazaoSocial,
		Status:    body.Situacao,
		Source:    SourceBrasilAPI,
	}, nil
}

// cleanCNPJ strips everything but digits.
func cleanCNPJ(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b = append(b, s[i])
		}
	}
	return string(b)
}

// formatCNPJ renders the canonical XX.XXX.XXX/XXXX-XX form. Anything that
// is not exactly 14 digits comes back as bare digits.
func formatCNPJ(s string) string {
	digits := cleanCNPJ(s)
	if len(digits) != 14 {
		return digits
	}
	return fmt.Sprintf("%s.%s.%s/%s-%s",
		digits[:2], digits[2:5], digits[5:8], digits[8:12], digits[12:])
}
