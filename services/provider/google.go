package provider

import (
	"context"
	"net/http"
	"strings"

	"fanfan-translator/pkg/config"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const DefaultGoogleURL = "https://translate.googleapis.com/translate_a/single"

// GoogleTranslator calls the keyless gtx endpoint. It has no allow-list and
// passes canonical codes through unchanged.
type GoogleTranslator struct {
	client *resty.Client
	url    string
	retry  retrier
}

func NewGoogle(url string, opts Options) *GoogleTranslator {
	if url == "" {
		url = DefaultGoogleURL
	}
	return &GoogleTranslator{
		client: newClient(opts),
		url:    url,
		retry:  newRetrier(Google, opts),
	}
}

func NewGoogleFromConfig(cfg *config.Config) *GoogleTranslator {
	return NewGoogle(cfg.Provider.Google.URL, OptionsFromConfig(cfg.Provider.Google))
}

func (g *GoogleTranslator) Name() Engine { return Google }

func (g *GoogleTranslator) Translate(ctx context.Context, text, lang string) Result {
	return g.retry.do(ctx, func(ctx context.Context) Result {
		return g.call(ctx, text, lang)
	})
}

func (g *GoogleTranslator) call(ctx context.Context, text, target string) Result {
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client": "gtx",
			"sl":     "auto",
			"tl":     target,
			"dt":     "t",
			"q":      text,
		}).
		Get(g.url)
	if err != nil {
		return classifyError(err)
	}
	if resp.StatusCode() != http.StatusOK {
		return classifyStatus(resp.StatusCode())
	}

	return parseGoogle(resp.Body())
}

// parseGoogle concatenates json[0][i][0] over all sentence segments.
func parseGoogle(body []byte) Result {
	if !gjson.ValidBytes(body) {
		return failure(OutcomeParseError)
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() || !root.Get("0").IsArray() {
		return failure(OutcomeParseError)
	}

	var sb strings.Builder
	for _, seg := range root.Get("0.#.0").Array() {
		sb.WriteString(seg.String())
	}

	out := sb.String()
	if strings.TrimSpace(out) == "" {
		return failure(OutcomeEmptyResponse)
	}
	return success(out)
}
