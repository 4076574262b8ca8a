package core

import "sync"

// Observer is notified synchronously after an operation has been committed, before the operation returns.
type Observer interface {
	Read(g *Group)
	Create(g *Group)
	Edit(g *Group)
	Delete(g *Group)
	AuthzAddRole(grant *RoleGrant)
	AuthzRemoveRole(grant *RoleGrant)
	// BeforeView may modify the data of a read view. It must return the data.
	BeforeView(data map[string]interface{}) map[string]interface{}
}

// NopObserver can be embedded in order to implement only some methods of Observer.
type NopObserver struct{}

func (NopObserver) Read(*Group)                {}
func (NopObserver) Create(*Group)              {}
func (NopObserver) Edit(*Group)                {}
func (NopObserver) Delete(*Group)              {}
func (NopObserver) AuthzAddRole(*RoleGrant)    {}
func (NopObserver) AuthzRemoveRole(*RoleGrant) {}

func (NopObserver) BeforeView(data map[string]interface{}) map[string]interface{} {
	return data
}

// Observers is a list of observers which are called in registration order. The zero value is ready to use.
type Observers struct {
	mu     sync.RWMutex
	list   []registration
	nextID uint64
}

type registration struct {
	id  uint64
	obs Observer
}

// Register appends obs. The returned function removes exactly this registration, even if obs is not comparable.
func (o *Observers) Register(obs Observer) (unregister func() bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	var id = o.nextID
	o.list = append(o.list, registration{id: id, obs: obs})
	return func() bool {
		return o.remove(func(r registration) bool { return r.id == id })
	}
}

// Unregister removes the first occurrence of obs. It returns false if obs has not been registered.
// Observers of non-comparable types never match, use the function returned by Register instead.
func (o *Observers) Unregister(obs Observer) bool {
	return o.remove(func(r registration) bool { return sameObserver(r.obs, obs) })
}

func (o *Observers) remove(match func(registration) bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := range o.list {
		if match(o.list[i]) {
			o.list = append(o.list[:i:i], o.list[i+1:]...)
			return true
		}
	}
	return false
}

// sameObserver compares a and b. Comparing interfaces panics if the dynamic types match but are not comparable.
func sameObserver(a, b Observer) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

func (o *Observers) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.list)
}

// snapshot allows observers to (un)register observers without a deadlock.
func (o *Observers) snapshot() []Observer {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var result = make([]Observer, len(o.list))
	for i, r := range o.list {
		result[i] = r.obs
	}
	return result
}

func (o *Observers) each(f func(Observer)) {
	for _, obs := range o.snapshot() {
		f(obs)
	}
}

func (o *Observers) beforeView(data map[string]interface{}) map[string]interface{} {
	for _, obs := range o.snapshot() {
		if result := obs.BeforeView(data); result != nil {
			data = result
		}
	}
	return data
}
