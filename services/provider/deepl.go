package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"fanfan-translator/pkg/config"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const DefaultDeepLBaseURL = "https://api-free.deepl.com"

var errNoTargets = errors.New("deepl returned no target languages")

var deeplLanguageMap = map[string]string{
	"en":    "EN",
	"ja":    "JA",
	"ru":    "RU",
	"zh-TW": "ZH-HANT",
	"zh-CN": "ZH-HANS",
	"de":    "DE",
	"fr":    "FR",
	"es":    "ES",
	"it":    "IT",
	"pt":    "PT",
	"nl":    "NL",
	"pl":    "PL",
	"ko":    "KO",
	"th":    "TH",
	"vi":    "VI",
	"id":    "ID",
	"my":    "MY",
}

// Used until Bootstrap succeeds, and kept if it never does.
var deeplFallbackTargets = []string{
	"EN", "JA", "RU", "ZH", "ZH-HANT", "ZH-HANS", "DE", "FR", "ES", "IT", "PT", "NL", "PL", "KO",
}

type DeepLTranslator struct {
	client  *resty.Client
	baseURL string
	apiKey  string
	retry   retrier

	mu        sync.RWMutex
	supported map[string]struct{}
}

func NewDeepL(baseURL, apiKey string, opts Options) *DeepLTranslator {
	if baseURL == "" {
		baseURL = DefaultDeepLBaseURL
	}
	d := &DeepLTranslator{
		client:  newClient(opts),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		retry:   newRetrier(DeepL, opts),
	}
	d.setSupported(deeplFallbackTargets)
	return d
}

func NewDeepLFromConfig(cfg *config.Config) *DeepLTranslator {
	p := cfg.Provider.DeepL
	return NewDeepL(p.BaseURL, p.APIKey, OptionsFromConfig(p))
}

func (d *DeepLTranslator) Name() Engine { return DeepL }

// TargetCode maps a canonical code into DeepL's vocabulary.
func TargetCode(lang string) string {
	if v, ok := deeplLanguageMap[lang]; ok {
		return v
	}
	return strings.ToUpper(lang)
}

func (d *DeepLTranslator) Supports(target string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.supported[target]
	return ok
}

func (d *DeepLTranslator) setSupported(codes []string) {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		set[strings.ToUpper(c)] = struct{}{}
	}
	d.mu.Lock()
	d.supported = set
	d.mu.Unlock()
}

// Bootstrap replaces the allow-list with the account's target languages.
// On failure the fallback list stays in place.
func (d *DeepLTranslator) Bootstrap(ctx context.Context) error {
	if d.apiKey == "" {
		return nil
	}

	resp, err := d.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"type":     "target",
			"auth_key": d.apiKey,
		}).
		Get(d.baseURL + "/v2/languages")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return errors.New("deepl languages: " + resp.Status())
	}

	var codes []string
	for _, v := range gjson.GetBytes(resp.Body(), "#.language").Array() {
		if c := v.String(); c != "" {
			codes = append(codes, c)
		}
	}
	if len(codes) == 0 {
		return errNoTargets
	}

	d.setSupported(codes)
	zap.L().Info("[DeepL] Loaded target languages", zap.Int("count", len(codes)))
	return nil
}

func (d *DeepLTranslator) Translate(ctx context.Context, text, lang string) Result {
	if d.apiKey == "" {
		res := failure(OutcomeNoCredentials)
		d.retry.record(res)
		return res
	}

	target := TargetCode(lang)
	if !d.Supports(target) {
		res := failure(OutcomeUnsupportedLanguage)
		d.retry.record(res)
		return res
	}

	return d.retry.do(ctx, func(ctx context.Context) Result {
		return d.call(ctx, text, target)
	})
}

func (d *DeepLTranslator) call(ctx context.Context, text, target string) Result {
	resp, err := d.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"auth_key":    d.apiKey,
			"text":        text,
			"target_lang": target,
		}).
		Post(d.baseURL + "/v2/translate")
	if err != nil {
		return classifyError(err)
	}
	if resp.StatusCode() != http.StatusOK {
		return classifyStatus(resp.StatusCode())
	}

	return parseDeepL(resp.Body())
}

func parseDeepL(body []byte) Result {
	if !gjson.ValidBytes(body) {
		return failure(OutcomeParseError)
	}
	v := gjson.GetBytes(body, "translations.0.text")
	if !v.Exists() {
		return failure(OutcomeParseError)
	}
	if strings.TrimSpace(v.String()) == "" {
		return failure(OutcomeEmptyResponse)
	}
	return success(v.String())
}
