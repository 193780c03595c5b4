package saves

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type farmState struct {
	Crops int `json:"crops"`
}

type testProvider struct {
	key      string
	state    farmState
	genErr   error
	panicGen bool
	setupErr error

	calls *[]string
	setup []Payload
}

func (p *testProvider) SaveKey() string { return p.key }

func (p *testProvider) GenerateSaveData() (any, error) {
	if p.calls != nil {
		*p.calls = append(*p.calls, p.key)
	}

	if p.panicGen {
		panic("provider exploded")
	}

	if p.genErr != nil {
		return nil, p.genErr
	}

	return p.state, nil
}

func (p *testProvider) SetupSaveData(data Payload) error {
	p.setup = append(p.setup, data)

	if data.Empty() {
		p.state = farmState{}

		return p.setupErr
	}

	err := data.Decode(&p.state)
	if err != nil {
		return err
	}

	return p.setupErr
}

func Test_CollectSaveData_Runs_Providers_In_Registration_Order_When_Saving(t *testing.T) {
	t.Parallel()

	s := newHarness(t).open()

	var calls []string

	for _, key := range []string{"farm", "economy", "perks"} {
		require.NoError(t, s.Register(&testProvider{key: key, calls: &calls}))
	}

	mustSaveFile(t, s)

	assert.Equal(t, []string{"farm", "economy", "perks"}, calls)
	assert.Equal(t, []string{"farm", "economy", "perks"}, s.Providers())
}

func Test_CollectSaveData_Isolates_Failures_When_Provider_Errors_Or_Panics(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	s := h.open()
	errBroken := errors.New("economy broken")

	require.NoError(t, s.Register(&testProvider{key: "farm", state: farmState{Crops: 4}}))
	require.NoError(t, s.Register(&testProvider{key: "economy", genErr: errBroken}))
	require.NoError(t, s.Register(&testProvider{key: "perks", panicGen: true}))
	require.NoError(t, s.Register(&testProvider{key: "weather", state: farmState{Crops: 9}}))

	err := s.CollectSaveData()
	require.ErrorIs(t, err, errBroken)
	require.ErrorIs(t, err, ErrCallbackPanic)

	mustSaveFile(t, s)

	next := h.open()
	assert.Equal(t, farmState{Crops: 4}, LoadOr(next, "farm", farmState{}))
	assert.Equal(t, farmState{Crops: 9}, LoadOr(next, "weather", farmState{}))
	assert.False(t, next.KeyExists("economy"))
}

func Test_SetFile_Hands_Providers_Slot_Data_When_Switching(t *testing.T) {
	t.Parallel()

	s := newHarness(t).open()
	farm := &testProvider{key: "farm", state: farmState{Crops: 3}}
	require.NoError(t, s.Register(farm))

	var order []string

	s.OnSetFile(func(int) { order = append(order, "hook") })

	mustSaveFile(t, s)

	mustSetFile(t, s, 2)
	require.Len(t, farm.setup, 1)
	assert.True(t, farm.setup[0].Empty(), "new slot has no farm data")
	assert.Equal(t, farmState{}, farm.state)
	require.ErrorIs(t, farm.setup[0].Decode(&farmState{}), ErrEmptyPayload)

	mustSetFile(t, s, 1)
	assert.Equal(t, farmState{Crops: 3}, farm.state)
	assert.JSONEq(t, `{"crops":3}`, string(farm.setup[1].Bytes()))
	assert.Equal(t, []string{"hook", "hook"}, order)
}

func Test_SetFile_Returns_Joined_Error_When_Provider_Setup_Fails(t *testing.T) {
	t.Parallel()

	s := newHarness(t).open()
	errSetup := errors.New("bad data")

	failing := &testProvider{key: "a", setupErr: errSetup}
	healthy := &testProvider{key: "b"}

	require.NoError(t, s.Register(failing))
	require.NoError(t, s.Register(healthy))

	err := s.SetFile(2)
	require.ErrorIs(t, err, errSetup)
	assert.Len(t, healthy.setup, 1)
	assert.Equal(t, 2, s.Slot())
}

func Test_Register_Rejects_Provider_When_Key_Empty_Or_Duplicate(t *testing.T) {
	t.Parallel()

	s := newHarness(t).open()

	require.ErrorIs(t, s.Register(&testProvider{}), ErrEmptySaveKey)
	require.NoError(t, s.Register(&testProvider{key: "farm"}))
	require.ErrorIs(t, s.Register(&testProvider{key: "farm"}), ErrDuplicateProvider)

	assert.True(t, s.Unregister("farm"))
	assert.False(t, s.Unregister("farm"))
	require.NoError(t, s.Register(&testProvider{key: "farm"}))
}

func Test_OnCollectSaveData_Allows_Reentrant_Save_When_Broadcasting(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	s := h.open()

	s.OnCollectSaveData(func() {
		_ = Save(s, "FromHook", 11)
	})

	mustSaveFile(t, s)

	assert.Equal(t, 11, LoadOr(h.open(), "FromHook", 0))
}

func Test_Hooks_Stop_Firing_When_Unsubscribed(t *testing.T) {
	t.Parallel()

	s := newHarness(t).open()

	var a, b int

	unsubA := s.OnSetFile(func(int) { a++ })
	s.OnSetFile(func(int) { b++ })

	mustSetFile(t, s, 2)
	unsubA()
	mustSetFile(t, s, 3)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
}

func Test_Hooks_Tolerate_Unsubscribe_When_Called_During_Broadcast(t *testing.T) {
	t.Parallel()

	s := newHarness(t).open()

	var calls int

	var unsub func()

	unsub = s.OnCollectSaveData(func() {
		calls++
		unsub()
	})
	s.OnCollectSaveData(func() { calls++ })

	require.NoError(t, s.CollectSaveData())
	require.NoError(t, s.CollectSaveData())

	assert.Equal(t, 3, calls)
}
