// Package resource provides the background resource monitor used by the
// batch processor to adapt batch sizing and parallelism to current system
// pressure. Monitoring failure is never fatal to a migration: sampling
// errors are logged and skipped, and a monitor that will not stop in time is
// abandoned rather than joined forever.
package resource

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"

	config "github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/core/config"
	"github.com/robkhoughton/TrainingMonkey-Clean-sub002/pkg/migration/support/util/logger"
)

// PressureLevel grades current memory pressure.
type PressureLevel int

const (
	// PressureLow is memory usage below 50%.
	PressureLow PressureLevel = iota
	// PressureMedium is memory usage from 50% up to 70%.
	PressureMedium
	// PressureHigh is memory usage from 70% up to 85%.
	PressureHigh
	// PressureCritical is memory usage at or above 85%.
	PressureCritical
)

// String returns the human-readable name of the pressure level.
func (p PressureLevel) String() string {
	switch p {
	case PressureLow:
		return "low"
	case PressureMedium:
		return "medium"
	case PressureHigh:
		return "high"
	case PressureCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// PressureLevelFor maps a memory usage percentage to its pressure level:
// low <50%, medium 50–70%, high 70–85%, critical ≥85%.
func PressureLevelFor(memoryPercent float64) PressureLevel {
	switch {
	case memoryPercent >= 85:
		return PressureCritical
	case memoryPercent >= 70:
		return PressureHigh
	case memoryPercent >= 50:
		return PressureMedium
	default:
		return PressureLow
	}
}

// Sample is one point-in-time resource reading.
type Sample struct {
	Timestamp     time.Time
	MemoryPercent float64
	CPUPercent    float64
	DiskPercent   float64
}

// SampleFunc produces one resource sample. The default implementation reads
// system memory, CPU and (optionally) disk usage via gopsutil; tests inject
// scripted functions.
type SampleFunc func(ctx context.Context) (Sample, error)

// Stats summarizes the samples observed since the last Reset.
type Stats struct {
	SampleCount          int
	PeakMemoryPercent    float64
	AverageMemoryPercent float64
	PeakCPUPercent       float64
	AverageCPUPercent    float64
}

// Monitor samples system resources on a fixed interval into a bounded
// rolling buffer and exposes the current pressure level. The buffer is
// appended from the sampling goroutine only; readers take the mutex, so no
// further synchronization discipline is needed.
type Monitor struct {
	interval  time.Duration
	bufferCap int
	sampleFn  SampleFunc

	mu        sync.RWMutex
	samples   []Sample
	latest    Sample
	hasLatest bool
	sumMem    float64
	sumCPU    float64
	count     int
	peakMem   float64
	peakCPU   float64

	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	startMu sync.Mutex
}

// NewMonitor creates a Monitor from configuration using the gopsutil
// sampler.
func NewMonitor(cfg config.ResourceConfig) *Monitor {
	return NewMonitorWithSampler(cfg, gopsutilSampler(cfg))
}

// NewMonitorWithSampler creates a Monitor with an injected sampler.
func NewMonitorWithSampler(cfg config.ResourceConfig, fn SampleFunc) *Monitor {
	interval := time.Duration(cfg.SampleIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	bufferCap := cfg.SampleBufferSize
	if bufferCap <= 0 {
		bufferCap = 1000
	}
	return &Monitor{
		interval:  interval,
		bufferCap: bufferCap,
		sampleFn:  fn,
	}
}

// gopsutilSampler returns the default SampleFunc backed by gopsutil.
func gopsutilSampler(cfg config.ResourceConfig) SampleFunc {
	return func(ctx context.Context) (Sample, error) {
		s := Sample{Timestamp: time.Now()}

		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			return s, err
		}
		s.MemoryPercent = vm.UsedPercent

		// Non-blocking CPU percent since the last call.
		cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
		if err == nil && len(cpuPercents) > 0 {
			s.CPUPercent = cpuPercents[0]
		}

		if cfg.SampleDisk {
			if usage, derr := disk.UsageWithContext(ctx, cfg.DiskPath); derr == nil {
				s.DiskPercent = usage.UsedPercent
			}
		}
		return s, nil
	}
}

// Start launches the background sampling goroutine. Calling Start on a
// running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	if m.started {
		return
	}
	m.started = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})

	go m.run(ctx)
	logger.Debugf("Resource monitor started (interval: %s, buffer: %d).", m.interval, m.bufferCap)
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.doneCh)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Take one sample immediately so pressure queries have data before the
	// first tick.
	m.sampleOnce(ctx)

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sampleOnce(ctx)
		}
	}
}

func (m *Monitor) sampleOnce(ctx context.Context) {
	s, err := m.sampleFn(ctx)
	if err != nil {
		// Monitoring failure is never fatal to the migration.
		logger.Warnf("Resource sample failed: %v", err)
		return
	}
	m.record(s)
}

func (m *Monitor) record(s Sample) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.samples = append(m.samples, s)
	if len(m.samples) > m.bufferCap {
		m.samples = m.samples[len(m.samples)-m.bufferCap:]
	}
	m.latest = s
	m.hasLatest = true
	m.count++
	m.sumMem += s.MemoryPercent
	m.sumCPU += s.CPUPercent
	if s.MemoryPercent > m.peakMem {
		m.peakMem = s.MemoryPercent
	}
	if s.CPUPercent > m.peakCPU {
		m.peakCPU = s.CPUPercent
	}
}

// Stop requests the sampling goroutine to stop and joins it with a timeout.
// If the goroutine does not stop in time, Stop logs and returns anyway.
func (m *Monitor) Stop(timeout time.Duration) {
	m.startMu.Lock()
	defer m.startMu.Unlock()
	if !m.started {
		return
	}
	m.started = false
	close(m.stopCh)

	select {
	case <-m.doneCh:
		logger.Debugf("Resource monitor stopped.")
	case <-time.After(timeout):
		logger.Warnf("Resource monitor did not stop within %s; continuing without joining.", timeout)
	}
}

// CurrentSample returns the most recent sample, if any.
func (m *Monitor) CurrentSample() (Sample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest, m.hasLatest
}

// CurrentMemoryPercent returns the most recent memory usage percentage, or
// zero when no sample has been taken yet.
func (m *Monitor) CurrentMemoryPercent() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest.MemoryPercent
}

// CurrentCPUPercent returns the most recent CPU usage percentage.
func (m *Monitor) CurrentCPUPercent() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest.CPUPercent
}

// CurrentMemoryPressure returns the pressure level of the latest sample.
// With no samples yet, pressure is reported low.
func (m *Monitor) CurrentMemoryPressure() PressureLevel {
	return PressureLevelFor(m.CurrentMemoryPercent())
}

// ShouldThrottle reports whether processing should back off: true when
// pressure is high or critical.
func (m *Monitor) ShouldThrottle() bool {
	return m.CurrentMemoryPressure() >= PressureHigh
}

// Stats returns the peak/average trackers since the last Reset.
func (m *Monitor) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Stats{
		SampleCount:       m.count,
		PeakMemoryPercent: m.peakMem,
		PeakCPUPercent:    m.peakCPU,
	}
	if m.count > 0 {
		st.AverageMemoryPercent = m.sumMem / float64(m.count)
		st.AverageCPUPercent = m.sumCPU / float64(m.count)
	}
	return st
}

// Reset clears the rolling buffer and the peak/average trackers. The batch
// processor resets the trackers at the start of each processing run.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = nil
	m.sumMem, m.sumCPU = 0, 0
	m.count = 0
	m.peakMem, m.peakCPU = 0, 0
}
