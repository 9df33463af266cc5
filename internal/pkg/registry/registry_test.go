package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModule struct {
	name     string
	priority int
	order    *[]string
	err      error
}

func (m *fakeModule) Name() string  { return m.name }
func (m *fakeModule) Priority() int { return m.priority }
func (m *fakeModule) Init(ctx *ModuleContext) error {
	*m.order = append(*m.order, m.name)
	return m.err
}

func withModules(t *testing.T, mods ...Module) {
	saved := moduleRegistry
	moduleRegistry = make(map[string]Module)
	for _, m := range mods {
		Register(m)
	}
	t.Cleanup(func() { moduleRegistry = saved })
}

func TestInitModulesByPriority(t *testing.T) {
	var order []string
	withModules(t,
		&fakeModule{name: "payment", priority: 40, order: &order},
		&fakeModule{name: "cart", priority: 10, order: &order},
		&fakeModule{name: "order", priority: 30, order: &order},
		&fakeModule{name: "pricing", priority: 20, order: &order},
	)

	require.NoError(t, InitModules(&ModuleContext{}))
	assert.Equal(t, []string{"cart", "pricing", "order", "payment"}, order)
}

func TestInitModulesStopsOnError(t *testing.T) {
	var order []string
	withModules(t,
		&fakeModule{name: "a", priority: 1, order: &order, err: errors.New("boom")},
		&fakeModule{name: "b", priority: 2, order: &order},
	)

	err := InitModules(&ModuleContext{})
	assert.ErrorContains(t, err, "init module a")
	assert.Equal(t, []string{"a"}, order)
}

func TestProvideLookupAndShutdown(t *testing.T) {
	ctx := &ModuleContext{}
	ctx.Provide("cart", 42)

	svc, err := ctx.Lookup("cart")
	require.NoError(t, err)
	assert.Equal(t, 42, svc)

	_, err = ctx.Lookup("missing")
	assert.Error(t, err)

	var closed []int
	ctx.OnShutdown(func() { closed = append(closed, 1) })
	ctx.OnShutdown(func() { closed = append(closed, 2) })
	ctx.Shutdown()
	assert.Equal(t, []int{2, 1}, closed)
}
