package typedData

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_DomainSeparatorCache(t *testing.T) {
	t.Run("Returns the computed separator", func(t *testing.T) {
		cache := NewDomainSeparatorCache()
		d := bentoBoxDomain()
		require.Equal(t, DomainSeparator(d), cache.Get(d))
		require.Equal(t, DomainSeparator(d), cache.Get(d))
		require.Equal(t, 1, cache.Len())
	})

	t.Run("Separate entries per chain and contract", func(t *testing.T) {
		cache := NewDomainSeparatorCache()
		a := cache.Get(NewDomainDescriptor(1, bentoBoxContract, WithName("BentoBox V2")))
		b := cache.Get(NewDomainDescriptor(31337, bentoBoxContract, WithName("BentoBox V2")))
		c := cache.Get(NewDomainDescriptor(31337, masterContract, WithName("BentoBox V2")))
		require.NotEqual(t, a, b)
		require.NotEqual(t, b, c)
		require.Equal(t, 3, cache.Len())
	})

	t.Run("Name presence is part of the key", func(t *testing.T) {
		cache := NewDomainSeparatorCache()
		withEmpty := cache.Get(NewDomainDescriptor(1, beefContract, WithName("")))
		without := cache.Get(NewDomainDescriptor(1, beefContract))
		require.NotEqual(t, withEmpty, without)
		require.Equal(t, 2, cache.Len())
	})

	t.Run("Concurrent access", func(t *testing.T) {
		cache := NewDomainSeparatorCache()
		expected := DomainSeparator(bentoBoxDomain())

		var wg sync.WaitGroup
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				require.Equal(t, expected, cache.Get(bentoBoxDomain()))
			}()
		}
		wg.Wait()
		require.Equal(t, 1, cache.Len())
	})
}
