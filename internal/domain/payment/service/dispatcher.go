package service

import (
	"errors"
	"fmt"

	"storefront_checkout/internal/domain/payment/model"
)

// ErrNoRedirect 支付会话缺少跳转指令
var ErrNoRedirect = errors.New("payment session has no redirect instruction")

const popupBlockedMessage = "Your browser blocked the payment window. Please allow popups for this site and try again."

// Action 浏览器侧动作
type Action string

const (
	ActionOpenWindow       Action = "OPEN_WINDOW"
	ActionNavigateCurrent  Action = "NAVIGATE_CURRENT"
	ActionOpenBlankAndPost Action = "OPEN_BLANK_AND_POST"
	ActionWarnPopupBlocked Action = "WARN_POPUP_BLOCKED"
)

// Step 单个跳转步骤
type Step struct {
	Action  Action          `json:"action"`
	URL     string          `json:"url,omitempty"`
	Form    *model.FormPost `json:"form,omitempty"`
	Message string          `json:"message,omitempty"`
}

// RedirectPlan 首选步骤，以及弹窗被拦截时的后备步骤
type RedirectPlan struct {
	Primary   Step `json:"primary"`
	OnBlocked Step `json:"onBlocked"`
}

// Plan 根据网关声明的跳转方式生成跳转计划
//
//	URL_REDIRECT: 新窗口打开，被拦截则当前页跳转
//	FORM_POST:    打开空白窗口后提交表单，被拦截则提示用户允许弹窗
func Plan(session *model.PaymentSession) (RedirectPlan, error) {
	if session == nil || session.Redirect == nil {
		return RedirectPlan{}, ErrNoRedirect
	}
	switch r := session.Redirect.(type) {
	case model.URLRedirect:
		return RedirectPlan{
			Primary:   Step{Action: ActionOpenWindow, URL: r.URL},
			OnBlocked: Step{Action: ActionNavigateCurrent, URL: r.URL},
		}, nil
	case model.FormPost:
		form := r
		return RedirectPlan{
			Primary:   Step{Action: ActionOpenBlankAndPost, Form: &form},
			OnBlocked: Step{Action: ActionWarnPopupBlocked, Message: popupBlockedMessage},
		}, nil
	default:
		return RedirectPlan{}, fmt.Errorf("unsupported redirect type %q", session.Redirect.Type())
	}
}

// Window 新打开的浏览器窗口
type Window interface {
	Submit(form model.FormPost) error
}

// Browser 执行跳转计划的一方
type Browser interface {
	// OpenWindow 返回 false 表示弹窗被拦截
	OpenWindow(url string) bool
	NavigateCurrent(url string)
	// OpenBlank 返回 nil 表示弹窗被拦截
	OpenBlank() Window
	Warn(message string)
}

// Dispatch 跳转执行结果
type Dispatch struct {
	Performed []Action
	Blocked   bool
}

// Execute 按计划执行跳转，弹窗被拦截时执行后备步骤
func Execute(plan RedirectPlan, b Browser) (Dispatch, error) {
	var d Dispatch
	switch plan.Primary.Action {
	case ActionOpenWindow:
		d.Performed = append(d.Performed, ActionOpenWindow)
		if b.OpenWindow(plan.Primary.URL) {
			return d, nil
		}
	case ActionOpenBlankAndPost:
		if plan.Primary.Form == nil {
			return d, ErrNoRedirect
		}
		d.Performed = append(d.Performed, ActionOpenBlankAndPost)
		if w := b.OpenBlank(); w != nil {
			return d, w.Submit(*plan.Primary.Form)
		}
	default:
		return d, fmt.Errorf("unsupported primary action %q", plan.Primary.Action)
	}

	d.Blocked = true
	d.Performed = append(d.Performed, plan.OnBlocked.Action)
	switch plan.OnBlocked.Action {
	case ActionNavigateCurrent:
		b.NavigateCurrent(plan.OnBlocked.URL)
	case ActionWarnPopupBlocked:
		b.Warn(plan.OnBlocked.Message)
	default:
		return d, fmt.Errorf("unsupported fallback action %q", plan.OnBlocked.Action)
	}
	return d, nil
}
