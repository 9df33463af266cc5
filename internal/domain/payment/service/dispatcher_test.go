package service

import (
	"errors"
	"testing"

	"storefront_checkout/internal/domain/payment/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWindow struct {
	forms []model.FormPost
	err   error
}

func (w *recordingWindow) Submit(form model.FormPost) error {
	w.forms = append(w.forms, form)
	return w.err
}

type fakeBrowser struct {
	blocked   bool
	opened    []string
	navigated []string
	warnings  []string
	window    *recordingWindow
}

func (b *fakeBrowser) OpenWindow(url string) bool {
	if b.blocked {
		return false
	}
	b.opened = append(b.opened, url)
	return true
}

func (b *fakeBrowser) NavigateCurrent(url string) { b.navigated = append(b.navigated, url) }

func (b *fakeBrowser) OpenBlank() Window {
	if b.blocked {
		return nil
	}
	if b.window == nil {
		b.window = &recordingWindow{}
	}
	return b.window
}

func (b *fakeBrowser) Warn(message string) { b.warnings = append(b.warnings, message) }

func urlSession() *model.PaymentSession {
	return &model.PaymentSession{PaymentSn: "P1", OrderSn: "SN1", Redirect: model.URLRedirect{URL: "https://pay.example/x"}}
}

func formSession() *model.PaymentSession {
	return &model.PaymentSession{PaymentSn: "P2", OrderSn: "SN2", Redirect: model.FormPost{
		ActionURL: "https://ecpay.example/Cashier",
		Method:    "POST",
		Fields:    map[string]string{"MerchantTradeNo": "P2", "CheckMacValue": "abc"},
	}}
}

func TestPlan(t *testing.T) {
	plan, err := Plan(urlSession())
	require.NoError(t, err)
	assert.Equal(t, Step{Action: ActionOpenWindow, URL: "https://pay.example/x"}, plan.Primary)
	assert.Equal(t, Step{Action: ActionNavigateCurrent, URL: "https://pay.example/x"}, plan.OnBlocked)

	plan, err = Plan(formSession())
	require.NoError(t, err)
	assert.Equal(t, ActionOpenBlankAndPost, plan.Primary.Action)
	require.NotNil(t, plan.Primary.Form)
	assert.Equal(t, "abc", plan.Primary.Form.Fields["CheckMacValue"])
	assert.Equal(t, ActionWarnPopupBlocked, plan.OnBlocked.Action)
	assert.NotEmpty(t, plan.OnBlocked.Message)

	_, err = Plan(&model.PaymentSession{PaymentSn: "P3"})
	assert.ErrorIs(t, err, ErrNoRedirect)
}

func TestExecuteURLRedirect(t *testing.T) {
	plan, _ := Plan(urlSession())

	t.Run("opens a new window", func(t *testing.T) {
		b := &fakeBrowser{}
		d, err := Execute(plan, b)
		require.NoError(t, err)
		assert.False(t, d.Blocked)
		assert.Equal(t, []string{"https://pay.example/x"}, b.opened)
		assert.Empty(t, b.navigated)
	})

	t.Run("falls back to the current tab", func(t *testing.T) {
		b := &fakeBrowser{blocked: true}
		d, err := Execute(plan, b)
		require.NoError(t, err)
		assert.True(t, d.Blocked)
		assert.Equal(t, []Action{ActionOpenWindow, ActionNavigateCurrent}, d.Performed)
		assert.Equal(t, []string{"https://pay.example/x"}, b.navigated)
	})
}

func TestExecuteFormPost(t *testing.T) {
	plan, _ := Plan(formSession())

	t.Run("posts opaque fields unchanged", func(t *testing.T) {
		b := &fakeBrowser{}
		d, err := Execute(plan, b)
		require.NoError(t, err)
		assert.False(t, d.Blocked)
		require.Len(t, b.window.forms, 1)
		assert.Equal(t, formSession().Redirect, b.window.forms[0])
	})

	t.Run("warns when blocked", func(t *testing.T) {
		b := &fakeBrowser{blocked: true}
		d, err := Execute(plan, b)
		require.NoError(t, err)
		assert.True(t, d.Blocked)
		assert.Len(t, b.warnings, 1)
		assert.Empty(t, b.navigated, "form post never falls back to navigation")
	})

	t.Run("submit error", func(t *testing.T) {
		b := &fakeBrowser{window: &recordingWindow{err: errors.New("closed")}}
		_, err := Execute(plan, b)
		assert.Error(t, err)
	})
}
