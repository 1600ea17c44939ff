package cache

// MemoryUsage reports the estimated byte budget consumption.
type MemoryUsage struct {
	UsedBytes  int64   `json:"usedBytes"`
	MaxBytes   int64   `json:"maxBytes"`
	Percentage float64 `json:"percentage"`
}

type Stats struct {
	TotalEntries    int           `json:"totalEntries"`
	HitCount        int64         `json:"hitCount"`
	MissCount       int64         `json:"missCount"`
	HitRate         float64       `json:"hitRate"`
	Evictions       int64         `json:"evictions"`
	MemoryUsage     MemoryUsage   `json:"memoryUsage"`
	TTLDistribution map[Class]int `json:"ttlDistribution"`
	ExpiredEntries  int           `json:"expiredEntries"`
}

// Stats returns a snapshot. Expired entries still held are counted in
// ExpiredEntries and excluded from TTLDistribution.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	s := Stats{
		TotalEntries: len(c.items),
		HitCount:     c.hits,
		MissCount:    c.misses,
		Evictions:    c.evictions,
		MemoryUsage: MemoryUsage{
			UsedBytes: c.used,
			MaxBytes:  c.maxBytes,
		},
		TTLDistribution: map[Class]int{
			ClassSuccess:   0,
			ClassFailure:   0,
			ClassDiscovery: 0,
		},
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	if c.maxBytes > 0 {
		s.MemoryUsage.Percentage = float64(c.used) / float64(c.maxBytes) * 100
	}
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*entry)
		if e.expired(now) {
			s.ExpiredEntries++
			continue
		}
		s.TTLDistribution[e.class]++
	}
	return s
}
