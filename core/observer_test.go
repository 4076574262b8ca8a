package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	NopObserver
	name string
	log  *[]string
}

func (r *recorder) Edit(*Group) {
	*r.log = append(*r.log, r.name)
}

func TestObserverOrder(t *testing.T) {

	var log []string
	var a = &recorder{name: "a", log: &log}
	var b = &recorder{name: "b", log: &log}
	var c = &recorder{name: "c", log: &log}

	var obs Observers
	obs.Register(a)
	obs.Register(b)
	obs.Register(c)
	obs.each(func(o Observer) { o.Edit(nil) })
	assert.Equal(t, []string{"a", "b", "c"}, log)

	assert.True(t, obs.Unregister(b))
	assert.False(t, obs.Unregister(b))
	assert.Equal(t, 2, obs.Len())

	log = nil
	obs.each(func(o Observer) { o.Edit(nil) })
	assert.Equal(t, []string{"a", "c"}, log)
}

// unregisterer removes itself when it is notified.
type unregisterer struct {
	NopObserver
	obs   *Observers
	calls int
}

func (u *unregisterer) Delete(*Group) {
	u.calls++
	u.obs.Unregister(u)
}

func TestObserverUnregisterDuringDispatch(t *testing.T) {
	var obs Observers
	var u = &unregisterer{obs: &obs}
	obs.Register(u)
	obs.each(func(o Observer) { o.Delete(nil) })
	obs.each(func(o Observer) { o.Delete(nil) })
	assert.Equal(t, 1, u.calls)
	assert.Equal(t, 0, obs.Len())
}

type nilView struct {
	NopObserver
}

func (nilView) BeforeView(map[string]interface{}) map[string]interface{} {
	return nil
}

func TestBeforeViewNilKeepsData(t *testing.T) {
	var obs Observers
	obs.Register(&nilView{})
	var data = obs.beforeView(map[string]interface{}{"a": 1})
	assert.Equal(t, map[string]interface{}{"a": 1}, data)
}

func TestObserversConcurrent(t *testing.T) {

	var obs Observers
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			var o = &recorder{name: "concurrent"}
			obs.Register(o)
			obs.Unregister(o)
		}()
		go func() {
			defer wg.Done()
			obs.each(func(o Observer) { o.Read(nil) })
		}()
	}

	wg.Wait()
	assert.Equal(t, 0, obs.Len())
}

// tagged is not comparable because of its slice field.
type tagged struct {
	NopObserver
	tags []string
}

func TestObserverNotComparable(t *testing.T) {

	var obs Observers
	var unregister = obs.Register(tagged{tags: []string{"a"}})
	obs.Register(tagged{tags: []string{"b"}})

	assert.NotPanics(t, func() {
		assert.False(t, obs.Unregister(tagged{tags: []string{"a"}}))
	})
	assert.Equal(t, 2, obs.Len())

	assert.True(t, unregister())
	assert.False(t, unregister())
	assert.Equal(t, 1, obs.Len())
}
