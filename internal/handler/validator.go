package handler

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"

	"just_sending_server/pkg/constants"
)

// Trans 参数校验错误的翻译器，HandleParamError 使用
var Trans ut.Translator

// tagSessionId 会话 ID / 校验码：固定 32 个字符
const tagSessionId = "session_id"

// sessionIdMessages 各语言下 session_id 规则的提示，{0} 为字段名，{1} 为长度
var sessionIdMessages = map[string]string{
	"en": "{0} must be a {1}-character session id",
	"zh": "{0}必须是{1}个字符的会话ID",
}

// InitTrans 注册自定义规则并按 locale 初始化翻译器
// locale 取自 mainConfig.locale，支持 "en" 与 "zh"
func InitTrans(locale string) (err error) {
	if binding.Validator == nil {
		binding.Validator = &defaultValidator{validator: validator.New()}
	}

	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}

	// 提示里用 json 字段名（id2），不用结构体字段名（Id2）
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation(tagSessionId, validateSessionId); err != nil {
		return err
	}

	enT := en.New()
	uni := ut.New(enT, enT, zh.New())
	Trans, ok = uni.GetTranslator(locale)
	if !ok {
		return fmt.Errorf("uni.GetTranslator(%s) failed", locale)
	}

	switch locale {
	case "zh":
		err = zh_translations.RegisterDefaultTranslations(v, Trans)
	default:
		err = en_translations.RegisterDefaultTranslations(v, Trans)
	}
	if err != nil {
		return err
	}
	return registerSessionIdTranslation(v, Trans, locale)
}

func validateSessionId(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) == constants.SESSION_ID_LENGTH
}

func registerSessionIdTranslation(v *validator.Validate, trans ut.Translator, locale string) error {
	text, ok := sessionIdMessages[locale]
	if !ok {
		text = sessionIdMessages["en"]
	}
	return v.RegisterTranslation(tagSessionId, trans,
		func(ut ut.Translator) error {
			return ut.Add(tagSessionId, text, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, err := ut.T(tagSessionId, fe.Field(), strconv.Itoa(constants.SESSION_ID_LENGTH))
			if err != nil {
				return fe.Error()
			}
			return msg
		},
	)
}

// RemoveTopStruct 去掉字段前的结构体名，"NewSessionRequest.id2" -> "id2"
func RemoveTopStruct(fields map[string]string) map[string]string {
	res := make(map[string]string)
	for field, err := range fields {
		res[field[strings.Index(field, ".")+1:]] = err
	}
	return res
}

// defaultValidator binding.Validator 为空时的兜底实现
type defaultValidator struct {
	validator *validator.Validate
}

func (v *defaultValidator) ValidateStruct(obj interface{}) error {
	return v.validator.Struct(obj)
}

func (v *defaultValidator) Engine() interface{} {
	return v.validator
}
