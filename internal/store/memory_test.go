package store

import (
	"sync"
	"testing"
	"time"
)

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if store == nil {
		t.Fatal("NewMemoryStore() = nil")
	}

	// should start empty
	if len(store.GetAll()) != 0 {
		t.Errorf("GetAll() = %v items, want 0", len(store.GetAll()))
	}
}

func TestMemoryStore_Update(t *testing.T) {
	store := NewMemoryStore()

	status := ReaderStatus{
		Name:        "dns",
		Providers:   []string{"Microsoft-Windows-DNS-Client"},
		State:       "idle",
		Cycles:      3,
		Events:      12,
		LastCycleAt: time.Now(),
	}

	store.Update(status)

	all := store.GetAll()
	if len(all) != 1 {
		t.Fatalf("GetAll() = %v items, want 1", len(all))
	}

	if all[0].Name != "dns" {
		t.Errorf("GetAll()[0].Name = %v, want %v", all[0].Name, "dns")
	}
	if all[0].Events != 12 {
		t.Errorf("GetAll()[0].Events = %v, want %v", all[0].Events, 12)
	}
}

func TestMemoryStore_UpdateOverwrites(t *testing.T) {
	store := NewMemoryStore()

	store.Update(ReaderStatus{Name: "dns", State: "idle"})
	store.Update(ReaderStatus{Name: "dns", State: "stopped"})

	all := store.GetAll()
	if len(all) != 1 {
		t.Fatalf("GetAll() = %v items, want 1", len(all))
	}
	if all[0].State != "stopped" {
		t.Errorf("GetAll()[0].State = %v, want %v", all[0].State, "stopped")
	}
}

func TestMemoryStore_GetAllSortedByName(t *testing.T) {
	store := NewMemoryStore()

	store.Update(ReaderStatus{Name: "system"})
	store.Update(ReaderStatus{Name: "app"})
	store.Update(ReaderStatus{Name: "dns"})

	all := store.GetAll()
	want := []string{"app", "dns", "system"}
	if len(all) != len(want) {
		t.Fatalf("GetAll() = %v items, want %v", len(all), len(want))
	}
	for i, name := range want {
		if all[i].Name != name {
			t.Errorf("GetAll()[%d].Name = %q, want %q", i, all[i].Name, name)
		}
	}
}

func TestMemoryStore_Modify(t *testing.T) {
	store := NewMemoryStore()

	store.Modify("dns", func(s *ReaderStatus) { s.Events += 2 })
	store.Modify("dns", func(s *ReaderStatus) {
		s.Events += 3
		msg := "access denied"
		s.LastError = &msg
	})

	got, ok := store.Get("dns")
	if !ok {
		t.Fatal("Get(dns) not found")
	}
	if got.Events != 5 {
		t.Errorf("Events = %d, want 5", got.Events)
	}
	if got.LastError == nil || *got.LastError != "access denied" {
		t.Errorf("LastError = %v, want access denied", got.LastError)
	}
}

func TestMemoryStore_ModifyKeepsName(t *testing.T) {
	store := NewMemoryStore()

	store.Modify("dns", func(s *ReaderStatus) { s.Name = "renamed" })

	if _, ok := store.Get("renamed"); ok {
		t.Error("Modify should not re-key the status")
	}
	if _, ok := store.Get("dns"); !ok {
		t.Error("Get(dns) not found")
	}
}

func TestMemoryStore_ConcurrentModify(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.Modify("dns", func(s *ReaderStatus) { s.Events++ })
			}
		}()
	}
	wg.Wait()

	got, _ := store.Get("dns")
	if got.Events != 1000 {
		t.Errorf("Events = %d, want 1000", got.Events)
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()
	if _, ok := store.Get("nope"); ok {
		t.Error("Get() on empty store should report not found")
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()

	providers := []string{"A", "B"}
	store.Update(ReaderStatus{Name: "dns", Providers: providers})
	providers[0] = "changed"

	got, _ := store.Get("dns")
	if got.Providers[0] != "A" {
		t.Error("store should not share the caller's slice")
	}

	got.Providers[1] = "changed"
	again, _ := store.Get("dns")
	if again.Providers[1] != "B" {
		t.Error("Get() should return a copy")
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	if ch == nil {
		t.Fatal("Subscribe() = nil")
	}

	go func() {
		store.Update(ReaderStatus{Name: "dns", State: "idle"})
	}()

	select {
	case status := <-ch:
		if status.Name != "dns" {
			t.Errorf("received Name = %v, want %v", status.Name, "dns")
		}
	case <-time.After(1 * time.Second):
		t.Error("Subscribe() channel did not receive update")
	}
}

func TestMemoryStore_ModifyNotifies(t *testing.T) {
	store := NewMemoryStore()
	ch := store.Subscribe()
	defer store.Unsubscribe(ch)

	store.Modify("dns", func(s *ReaderStatus) { s.State = "querying" })

	select {
	case status := <-ch:
		if status.State != "querying" {
			t.Errorf("received State = %q, want querying", status.State)
		}
	case <-time.After(1 * time.Second):
		t.Error("Modify() did not notify subscriber")
	}
}

func TestMemoryStore_MultipleSubscribers(t *testing.T) {
	store := NewMemoryStore()

	ch1 := store.Subscribe()
	ch2 := store.Subscribe()
	ch3 := store.Subscribe()

	// update should fanout to all subscribers
	go func() {
		store.Update(ReaderStatus{Name: "dns"})
	}()

	received := 0
	timeout := time.After(1 * time.Second)
	for received < 3 {
		select {
		case <-ch1:
			received++
		case <-ch2:
			received++
		case <-ch3:
			received++
		case <-timeout:
			t.Fatalf("Only received %d/3 updates", received)
		}
	}
}

func TestMemoryStore_Unsubscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	store.Unsubscribe(ch)

	// channel should be closed
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Unsubscribe() channel should be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Unsubscribe() channel should be closed immediately")
	}

	// second call is a no-op
	store.Unsubscribe(ch)
}

func TestMemoryStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	store := NewMemoryStore()

	// create a subscriber but don't read from it
	_ = store.Subscribe()

	done := make(chan bool)
	go func() {
		for i := 0; i < 200; i++ {
			store.Modify("dns", func(s *ReaderStatus) { s.Cycles++ })
		}
		done <- true
	}()

	select {
	case <-done:
		// expected - updates completed without blocking
	case <-time.After(2 * time.Second):
		t.Error("Modify() blocked on slow subscriber")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	numGoroutines := 10
	numUpdates := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				store.Update(ReaderStatus{Name: "dns", State: "idle"})
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				_ = store.GetAll()
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := store.Subscribe()
			time.Sleep(10 * time.Millisecond)
			store.Unsubscribe(ch)
		}()
	}

	wg.Wait()
}
