package i18n

import "sync"

// Translator retrieves localized messages for error codes.
// data provides optional metadata to embed in the message (for example,
// "element" or "type").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

var messages = map[string]map[string]string{
	"en": {
		"shape":                         "malformed document shape",
		"unmapped_field":                "unmapped element",
		"missing_required":              "required element missing",
		"ambiguous_construction":        "ambiguous construction",
		"disallowed_type":               "type is not allowed",
		"member_codec":                  "member codec failure in",
		"construction_returned_nothing": "construction returned nothing",
		"discriminator_unknown":         "unknown discriminator",
		"discriminator_ambiguous":       "ambiguous discriminator",
		"not_assignable":                "discriminated type is not assignable",
		"no_serializer":                 "no serializer registered",
		"invalid_class_map":             "invalid class map",
		"duplicate_element":             "duplicate element",
		"max_depth":                     "max depth exceeded",
		"cursor_state":                  "invalid cursor state",
	},
	"ja": {
		"shape":                         "ドキュメントの形が不正です",
		"unmapped_field":                "未定義の要素です",
		"missing_required":              "必須要素が不足しています",
		"ambiguous_construction":        "生成方法が曖昧です",
		"disallowed_type":               "許可されていない型です",
		"member_codec":                  "メンバーの変換に失敗しました",
		"construction_returned_nothing": "インスタンスが生成されませんでした",
		"discriminator_unknown":         "未知の識別子です",
		"discriminator_ambiguous":       "識別子が曖昧です",
		"not_assignable":                "識別された型が代入できません",
		"no_serializer":                 "シリアライザが登録されていません",
		"invalid_class_map":             "クラスマップが不正です",
		"duplicate_element":             "要素が重複しています",
		"max_depth":                     "ネストが深すぎます",
		"cursor_state":                  "カーソルの状態が不正です",
	},
}

func (t dictTranslator) Message(code string, data map[string]string) string {
	if m, ok := messages[t.lang][code]; ok {
		return m
	}
	return code
}

var (
	mu                sync.RWMutex
	currentTranslator Translator = dictTranslator{lang: "en"}
)

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	SetTranslator(dictTranslator{lang: lang})
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		tr = dictTranslator{lang: "en"}
	}
	mu.Lock()
	currentTranslator = tr
	mu.Unlock()
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string {
	mu.RLock()
	tr := currentTranslator
	mu.RUnlock()
	return tr.Message(code, data)
}
