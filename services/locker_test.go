package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserLockerSerializesSameUser(t *testing.T) {
	locks := NewUserLocker()
	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(7)
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, locks.size())
}

func TestUserLockerIndependentUsers(t *testing.T) {
	locks := NewUserLocker()
	unlockA := locks.Lock(1)
	unlockB := locks.Lock(2)
	assert.Equal(t, 2, locks.size())

	unlockA()
	unlockB()
	assert.Equal(t, 0, locks.size())
}
