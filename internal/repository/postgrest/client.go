package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	pgrest "github.com/supabase-community/postgrest-go"

	"github.com/xela07ax/donewell-adapter/internal/repository"
)

// codeNoRows — PostgREST отвечает им, когда single-выборка пуста.
const codeNoRows = "PGRST116"

// ProviderName — имя провайдера в диагностике.
const ProviderName = "supabase"

// Client — проба Supabase/PostgREST поверх postgrest-go.
// Таймаута у клиента нет: пробу ограничивает только контекст вызывающего.
type Client struct {
	restURL string
	apiKey  string
	next    http.RoundTripper
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		restURL: strings.TrimRight(baseURL, "/") + "/rest/v1",
		apiKey:  apiKey,
		next:    http.DefaultTransport,
	}
}

func (c *Client) Provider() string {
	return ProviderName
}

// PeekOne выполняет from(table).select("id").limit(1).
func (c *Client) PeekOne(ctx context.Context, table string) error {
	// postgrest-go не принимает контекст, поэтому клиент собирается на каждую пробу,
	// а контекст протаскивается через родительский RoundTripper.
	pc := pgrest.NewClient(c.restURL, "", nil).
		SetApiKey(c.apiKey).
		SetAuthToken(c.apiKey)
	if pc.ClientError != nil {
		return fmt.Errorf("postgrest: %w", pc.ClientError)
	}
	pc.Transport.Parent = contextTransport{ctx: ctx, next: c.next}

	body, _, err := pc.From(table).Select("id", "", false).Limit(1, "").Execute()
	if err != nil {
		if strings.HasPrefix(err.Error(), "("+codeNoRows+")") {
			return repository.ErrNoRows
		}
		return err
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return fmt.Errorf("postgrest: decode rows: %w", err)
	}
	if len(rows) == 0 {
		return repository.ErrNoRows
	}
	return nil
}

// contextTransport привязывает каждый запрос к контексту пробы.
type contextTransport struct {
	ctx  context.Context
	next http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.next.RoundTrip(req.WithContext(t.ctx))
}
