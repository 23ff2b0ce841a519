package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// BenchmarkCollector_RelayPath covers the calls made per chunk and per
// session while relaying.
func BenchmarkCollector_RelayPath(b *testing.B) {
	for _, bc := range []struct {
		name string
		c    *Collector
	}{
		{"live", New()},
		{"nil", nil},
	} {
		b.Run(bc.name, func(b *testing.B) {
			c := bc.c
			for i := 0; i < b.N; i++ {
				c.ConnectionOpened()
				c.BytesSent(1024)
				c.BytesReceived(8192)
				c.ChunksLagged(1)
				c.ConnectionClosed()
			}
		})
	}
}

func BenchmarkCollector_Gather(b *testing.B) {
	c := New()
	c.ConnectionOpened()
	c.BytesSent(1024)
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := reg.Gather(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCollector_JSON(b *testing.B) {
	c := New()
	c.ConnectionOpened()
	c.RecordError("reset by peer")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.JSON()
	}
}
