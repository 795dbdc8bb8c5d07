package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fanfan-translator/services/feature"
	"fanfan-translator/services/license"
	"fanfan-translator/services/provider"
	"fanfan-translator/services/translation"

	"go.uber.org/zap"
)

const (
	WelcomeText        = "👋 歡迎邀請翻譯小精靈！"
	FollowText         = "感謝加入 FANVIP！請輸入「1」開啟會員中心，或貼上序號進行啟用。"
	UnauthorizedText   = "❌ 只有授權使用者可以設定喲～"
	ResetText          = "✅ 已清除翻譯語言設定！"
	ExpiredText        = "⛔ 訂閱已過期，請聯絡管理員續約"
	MemberCentreText   = "會員中心：\n1) 查看資訊\n2) 啟用/續期（貼上序號）\n3) 支援"
	UnknownCommandText = "指令不明，請輸入「1」查看會員中心或貼上序號進行啟用。"
	CodeFormatText     = "格式錯誤。範例：/序號 5 30天"
	NoDatabaseText     = "伺服器未啟用資料庫，無法生產序號。"
	CodeNotFoundText   = "序號不存在或已使用。"
	CodeUsedText       = "序號已被使用。"
	RedeemFailedText   = "❌ 兌換失敗，請稍後再試"
	UnknownEngineText  = "❌ 不支援的翻譯引擎"

	manualPrefix  = "!翻譯"
	codeCmdPrefix = "/序號"
	replyTimeout  = 10 * time.Second
)

var nonDigits = regexp.MustCompile(`[^0-9]`)

type Groups interface {
	LanguageSource
	ToggleLanguage(ctx context.Context, groupID, code string) ([]string, error)
	ResetLanguages(ctx context.Context, groupID string) error
	SetEnginePreference(ctx context.Context, groupID string, engine provider.Engine) error
	TouchActivity(ctx context.Context, groupID string, at time.Time) error
	AutoTranslate(groupID string) bool
	GroupAdmin(groupID string) string
	IsWhitelisted(userID string) bool
}

type Translator interface {
	TranslateAll(ctx context.Context, text string, langs []string, groupID string) string
}

type Submitter interface {
	Submit(ctx context.Context, job translation.Job, done func(string)) bool
}

type Access interface {
	CheckGroupAccess(ctx context.Context, groupID string) bool
}

type Features interface {
	Enabled(ctx context.Context, groupID, feature string) bool
}

type Licenses interface {
	Available() bool
	Generate(ctx context.Context, count, days int) ([]license.LicenseCode, error)
	Redeem(ctx context.Context, code, lineUserID string) (*license.Redemption, error)
}

type HandlerOptions struct {
	Gateway    Gateway
	Groups     Groups
	Languages  LanguageTable
	Menu       *Menu
	Translator Translator
	Pool       Submitter
	Access     Access
	Features   Features
	Licenses   Licenses
	Masters    []string
	Clock      func() time.Time
}

// Handler turns webhook events into replies. Translation work is handed to
// the pool; everything else replies inline.
type Handler struct {
	opts      HandlerOptions
	masters   map[string]struct{}
	now       func() time.Time
	startedAt time.Time
}

func NewHandler(opts HandlerOptions) *Handler {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Menu == nil {
		opts.Menu = NewMenu(opts.Groups, opts.Languages, opts.Clock)
	}
	masters := make(map[string]struct{}, len(opts.Masters))
	for _, id := range opts.Masters {
		if id = strings.TrimSpace(id); id != "" {
			masters[id] = struct{}{}
		}
	}
	return &Handler{
		opts:      opts,
		masters:   masters,
		now:       opts.Clock,
		startedAt: opts.Clock(),
	}
}

func (h *Handler) Uptime() time.Duration { return h.now().Sub(h.startedAt) }

// Handle processes a single event. A failed reply is logged, not returned.
func (h *Handler) Handle(ctx context.Context, ev Event) {
	src := ev.Source()
	if src.IsGroup() {
		if err := h.opts.Groups.TouchActivity(ctx, src.GroupID, h.now()); err != nil {
			zap.L().Warn("[Bot] failed to touch group activity", zap.String("group_id", src.GroupID), zap.Error(err))
		}
	}

	switch e := ev.(type) {
	case JoinEvent:
		h.reply(ctx, e, TextMessage(WelcomeText), h.opts.Menu.Render(ctx, src.ChatID()))
	case FollowEvent:
		h.reply(ctx, e, TextMessage(FollowText))
	case PostbackEvent:
		h.handlePostback(ctx, e)
	case MessageEvent:
		h.handleMessage(ctx, e)
	default:
		zap.L().Debug("[Bot] ignoring event", zap.String("kind", ev.Kind()))
	}
}

func (h *Handler) reply(ctx context.Context, ev Event, messages ...Message) {
	if err := h.opts.Gateway.Reply(ctx, ev.ReplyToken(), messages...); err != nil {
		zap.L().Warn("[Bot] reply failed", zap.String("kind", ev.Kind()), zap.Error(err))
	}
}

func (h *Handler) replyText(ctx context.Context, ev Event, text string) {
	h.reply(ctx, ev, TextMessage(text))
}

func (h *Handler) isMaster(userID string) bool {
	_, ok := h.masters[userID]
	return ok
}

func (h *Handler) authorized(userID, chatID string) bool {
	if userID == "" {
		return false
	}
	return h.isMaster(userID) ||
		h.opts.Groups.IsWhitelisted(userID) ||
		h.opts.Groups.GroupAdmin(chatID) == userID
}

func (h *Handler) handlePostback(ctx context.Context, ev PostbackEvent) {
	src := ev.Source()
	chatID := src.ChatID()

	if !h.authorized(src.UserID, chatID) {
		h.replyText(ctx, ev, UnauthorizedText)
		return
	}

	data := strings.TrimSpace(ev.Data)
	switch {
	case data == "reset":
		if err := h.opts.Groups.ResetLanguages(ctx, chatID); err != nil {
			zap.L().Warn("[Bot] reset languages failed", zap.String("group_id", chatID), zap.Error(err))
		}
		h.opts.Menu.Invalidate(chatID)
		h.replyText(ctx, ev, ResetText)

	case strings.HasPrefix(data, "lang:"):
		code := strings.TrimPrefix(data, "lang:")
		if _, err := h.opts.Groups.ToggleLanguage(ctx, chatID, code); err != nil {
			zap.L().Warn("[Bot] toggle language failed", zap.String("group_id", chatID), zap.String("code", code), zap.Error(err))
		}
		h.opts.Menu.Invalidate(chatID)
		h.replyText(ctx, ev, h.currentLanguagesText(ctx, chatID))

	case strings.HasPrefix(data, "engine:"):
		engine, ok := provider.ParseEngine(strings.TrimPrefix(data, "engine:"))
		if !ok {
			h.replyText(ctx, ev, UnknownEngineText)
			return
		}
		if err := h.opts.Groups.SetEnginePreference(ctx, chatID, engine); err != nil {
			zap.L().Warn("[Bot] set engine failed", zap.String("group_id", chatID), zap.Error(err))
		}
		h.replyText(ctx, ev, fmt.Sprintf("✅ 已切換翻譯引擎：%s", engineLabel(engine)))

	default:
		zap.L().Debug("[Bot] unknown postback", zap.String("data", data))
	}
}

func engineLabel(e provider.Engine) string {
	if e == provider.DeepL {
		return "DeepL"
	}
	return "Google"
}

func (h *Handler) currentLanguagesText(ctx context.Context, chatID string) string {
	selected := h.opts.Groups.GetLanguages(ctx, chatID)
	lines := make([]string, 0, len(selected))
	for _, l := range h.opts.Languages.Entries() {
		for _, code := range selected {
			if code == l.Code {
				lines = append(lines, fmt.Sprintf("%s (%s)", l.Label, l.Code))
				break
			}
		}
	}
	list := "(無)"
	if len(lines) > 0 {
		list = strings.Join(lines, "\n")
	}
	return "✅ 已更新翻譯語言！\n\n目前設定語言：\n" + list
}

func (h *Handler) handleMessage(ctx context.Context, ev MessageEvent) {
	if ev.MessageType != "text" {
		return
	}

	src := ev.Source()
	chatID := src.ChatID()
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}

	switch {
	case h.isMaster(src.UserID) && strings.HasPrefix(text, codeCmdPrefix):
		h.generateCodes(ctx, ev, text)
		return

	case license.IsCode(text) && h.opts.Licenses != nil && h.opts.Licenses.Available():
		h.redeem(ctx, ev, src.UserID, text)
		return

	case text == "/狀態" || text == "系統狀態":
		h.replyText(ctx, ev, "⏰ 運行時間："+formatUptime(h.Uptime()))
		return

	case text == "/選單":
		h.reply(ctx, ev, h.opts.Menu.Render(ctx, chatID))
		return

	case text == "1" || text == "會員中心":
		h.replyText(ctx, ev, MemberCentreText)
		return

	case strings.HasPrefix(text, manualPrefix):
		if body := strings.TrimSpace(strings.TrimPrefix(text, manualPrefix)); body != "" {
			h.translate(ctx, ev, chatID, body)
		}
		return
	}

	if !src.IsGroup() && src.RoomID == "" {
		h.replyText(ctx, ev, UnknownCommandText)
		return
	}
	if h.opts.Groups.AutoTranslate(chatID) {
		h.translate(ctx, ev, chatID, text)
	}
}

// parseCodeCommand reads "/序號 N [D天]".
func parseCodeCommand(text string) (count, days int, err error) {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		return 0, 0, errors.New("missing count")
	}
	count, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	days = license.DefaultDays
	if len(parts) >= 3 {
		days, err = strconv.Atoi(nonDigits.ReplaceAllString(parts[2], ""))
		if err != nil {
			return 0, 0, err
		}
	}
	return count, days, nil
}

func (h *Handler) generateCodes(ctx context.Context, ev MessageEvent, text string) {
	count, days, err := parseCodeCommand(text)
	if err != nil {
		h.replyText(ctx, ev, CodeFormatText)
		return
	}
	if h.opts.Licenses == nil || !h.opts.Licenses.Available() {
		h.replyText(ctx, ev, NoDatabaseText)
		return
	}

	codes, err := h.opts.Licenses.Generate(ctx, count, days)
	if errors.Is(err, license.ErrInvalidCount) || errors.Is(err, license.ErrInvalidDays) {
		h.replyText(ctx, ev, CodeFormatText)
		return
	}
	if err != nil {
		zap.L().Error("[Bot] generate codes failed", zap.Error(err))
		h.replyText(ctx, ev, RedeemFailedText)
		return
	}

	lines := make([]string, 0, len(codes))
	for _, c := range codes {
		lines = append(lines, c.Code)
	}
	h.replyText(ctx, ev, "已產生序號：\n"+strings.Join(lines, "\n"))
}

func (h *Handler) redeem(ctx context.Context, ev MessageEvent, userID, code string) {
	r, err := h.opts.Licenses.Redeem(ctx, code, userID)
	switch {
	case errors.Is(err, license.ErrCodeNotFound):
		h.replyText(ctx, ev, CodeNotFoundText)
	case errors.Is(err, license.ErrCodeUsed):
		h.replyText(ctx, ev, CodeUsedText)
	case err != nil:
		zap.L().Error("[Bot] redeem failed", zap.String("user_id", userID), zap.Error(err))
		h.replyText(ctx, ev, RedeemFailedText)
	default:
		h.replyText(ctx, ev, fmt.Sprintf("兌換成功！已為您延長 %d 天，會員有效期到 %s。",
			r.Days, r.ExpireAt.Format("2006-01-02 15:04:05")))
	}
}

func (h *Handler) translate(ctx context.Context, ev MessageEvent, chatID, text string) {
	if h.opts.Access != nil && !h.opts.Access.CheckGroupAccess(ctx, chatID) {
		h.replyText(ctx, ev, ExpiredText)
		return
	}
	if h.opts.Features != nil && !h.opts.Features.Enabled(ctx, chatID, feature.Translate) {
		return
	}

	langs := h.opts.Groups.GetLanguages(ctx, chatID)
	if len(langs) == 0 {
		return
	}

	job := func(ctx context.Context) string {
		return h.opts.Translator.TranslateAll(ctx, text, langs, chatID)
	}
	done := func(result string) {
		if result == "" {
			return
		}
		replyCtx, cancel := context.WithTimeout(context.Background(), replyTimeout)
		defer cancel()
		h.reply(replyCtx, ev, TextMessage(result))
	}

	if !h.opts.Pool.Submit(ctx, job, done) {
		h.replyText(ctx, ev, translation.BusyText)
	}
}

func formatUptime(d time.Duration) string {
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
