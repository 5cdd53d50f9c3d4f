// Package cache is a keyed store whose entries expire a fixed time after
// they were last set.
//
// The discovery layer keeps provider definitions in a TTL so a provider that
// changed its definition without announcing it is looked up again within one
// TTL. Time comes from an injectable clock:
//
//	mock := clock.NewMock()
//	defs, _ := cache.NewTTL[hub.ProviderDefinition](ctx, 24*time.Hour, cache.WithClock[hub.ProviderDefinition](mock))
//	defs.Set("plc-1", def)
//	mock.Add(25 * time.Hour)
//	_, ok := defs.Get("plc-1") // false
//
// Expired entries are dropped lazily by Get and by a background sweep that
// ends with Close or the context passed to NewTTL.
package cache
