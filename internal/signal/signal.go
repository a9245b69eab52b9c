package signal

import (
	"errors"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
)

type Action string

const (
	ActionEnterLong  Action = "ENTER-LONG"
	ActionEnterShort Action = "ENTER-SHORT"
	ActionExitLong   Action = "EXIT-LONG"
	ActionExitShort  Action = "EXIT-SHORT"
	ActionExitAll    Action = "EXIT-ALL"
)

// 匹配优先级是固定的：一条消息同时含有多个动作词时取先命中的
// 这是对上游模板的刻意宽容，行为保持可预期即可
var actionPriority = []Action{
	ActionEnterLong,
	ActionEnterShort,
	ActionExitLong,
	ActionExitShort,
	ActionExitAll,
}

func (a Action) IsEntry() bool {
	return a == ActionEnterLong || a == ActionEnterShort
}

func (a Action) IsLong() bool {
	return a == ActionEnterLong || a == ActionExitLong
}

// SizeDirective 信号携带的仓位指令
// 入场：可用余额的比例（0,1）；离场：币的绝对数量
// Explicit 为 false 时用配置里的默认比例
type SizeDirective struct {
	Value    float64
	Explicit bool
}

// Signal 一次入站信号，执行器消费一次后丢弃，不落盘
type Signal struct {
	Raw       string
	Action    Action
	Size      SizeDirective
	ID        string // 严格模板时的显式信号id，用于去重
	Timestamp time.Time
}

var (
	ErrEmptyMessage  = errors.New("signal: empty message")
	ErrUnknownAction = errors.New("signal: no recognizable action")
)

// Parse 从入站报文中解析出动作和仓位指令
// 报文三种形态按序尝试：JSON 的 message 字段、表单的 message 字段、裸文本，先解出动作者胜
func Parse(body []byte) (*Signal, error) {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return nil, ErrEmptyMessage
	}

	for _, msg := range candidates(raw) {
		if act, pos, width, ok := matchAction(msg); ok {
			sig := &Signal{
				Raw:       msg,
				Action:    act,
				Timestamp: time.Now(),
			}
			sig.Size = extractSize(msg[pos+width:], act)
			sig.ID = extractID(msg, act)
			return sig, nil
		}
	}
	return nil, ErrUnknownAction
}

func candidates(raw string) []string {
	out := make([]string, 0, 3)

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err == nil && payload.Message != "" {
		out = append(out, strings.TrimSpace(payload.Message))
	}

	// 表单要在裸文本之前：form 报文当裸文本也能命中动作词，
	// 但 &k=v 的尾巴会污染仓位指令的提取
	if values, err := url.ParseQuery(raw); err == nil {
		if msg := strings.TrimSpace(values.Get("message")); msg != "" {
			out = append(out, msg)
		}
	}

	out = append(out, raw)
	return out
}

// matchAction 大小写不敏感的子串匹配，连字符和下划线等价
// 返回命中的动作、位置和命中词长度
func matchAction(msg string) (Action, int, int, bool) {
	upper := strings.ToUpper(msg)
	for _, act := range actionPriority {
		hyphen := string(act)
		underscore := strings.ReplaceAll(hyphen, "-", "_")
		if i := strings.Index(upper, hyphen); i >= 0 {
			return act, i, len(hyphen), true
		}
		if i := strings.Index(upper, underscore); i >= 0 {
			return act, i, len(underscore), true
		}
	}
	return "", 0, 0, false
}

// extractSize 扫描动作词之后的 _ 分段，第一个落在 (0,100] 的数字就是仓位指令
// 入场：<1 当作比例，>=1 当作百分比再除以 100；离场：数字就是要平的数量
func extractSize(rest string, act Action) SizeDirective {
	for _, seg := range strings.Split(rest, "_") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		n, err := cast.ToFloat64E(seg)
		if err != nil || n <= 0 || n > 100 {
			continue
		}
		if act.IsEntry() && n >= 1 {
			n = n / 100
		}
		return SizeDirective{Value: n, Explicit: true}
	}
	return SizeDirective{}
}

// extractID 严格模板 ACTION_EXCHANGE_SYMBOL_BOT_TIMEFRAME_ID 时取末段作为信号id
// 动作写成下划线形式时它自己会占两段，要拼回来再比对
func extractID(msg string, act Action) string {
	segs := strings.Split(msg, "_")
	switch {
	case len(segs) >= 6 && strings.EqualFold(segs[0], string(act)):
	case len(segs) >= 7 && strings.EqualFold(segs[0]+"-"+segs[1], string(act)):
	default:
		return ""
	}
	last := strings.TrimSpace(segs[len(segs)-1])
	if last == "" {
		return ""
	}
	return last
}
