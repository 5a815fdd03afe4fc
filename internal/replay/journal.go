package replay

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	JournalBufferSize          = 512                    // ring buffer slots
	MaxJournalEventsPerSec     = 2000                   // global rate limit
	MaxJournalEventsPerSubject = 50                     // per participant per second
	JournalFlushSize           = 64                     // events per batch write
	JournalFlushInterval       = 250 * time.Millisecond // how often to flush
)

// Journal is a bounded, rate-limited NDJSON log of playback events. Emit
// never blocks the frame driver: when the ring is full the oldest pending
// event is dropped.
type Journal struct {
	buffer    [JournalBufferSize]JournalEvent
	writeHead uint64 // atomic - producer position
	readHead  uint64 // atomic - consumer position
	ringMu    sync.Mutex

	globalLimiter   *rate.Limiter
	subjectLimiters sync.Map // map[string]*rate.Limiter

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	file   *os.File
	out    *bufio.Writer
	fileMu sync.Mutex

	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
}

// NewJournal creates a stopped journal
func NewJournal() *Journal {
	return &Journal{
		globalLimiter: rate.NewLimiter(MaxJournalEventsPerSec, MaxJournalEventsPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start opens filePath for append and launches the writer. An empty path
// keeps events in memory only, which is what tests use. A stopped journal
// may be started again.
func (j *Journal) Start(filePath string) error {
	if j.running.Load() {
		return nil
	}
	j.stopChan = make(chan struct{})
	j.stopOnce = sync.Once{}

	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		j.file = file
		j.out = bufio.NewWriter(file)
	}

	j.running.Store(true)
	j.writerWg.Add(1)
	go j.writerLoop()
	return nil
}

// Stop flushes pending events and closes the file. Safe to call twice.
func (j *Journal) Stop() {
	j.stopOnce.Do(func() {
		j.running.Store(false)
		close(j.stopChan)
		j.writerWg.Wait()

		j.fileMu.Lock()
		if j.out != nil {
			j.out.Flush()
		}
		if j.file != nil {
			j.file.Close()
		}
		j.file, j.out = nil, nil
		j.fileMu.Unlock()
	})
}

// Emit queues an event. It returns false when the journal is stopped or the
// event was rate limited.
func (j *Journal) Emit(event JournalEvent) bool {
	if !j.running.Load() {
		return false
	}
	if !j.globalLimiter.Allow() {
		atomic.AddUint64(&j.droppedCount, 1)
		return false
	}
	if event.ParticipantID != "" && !j.subjectLimiter(event.ParticipantID).Allow() {
		atomic.AddUint64(&j.droppedCount, 1)
		return false
	}

	j.ringMu.Lock()
	head := j.writeHead + 1
	if head-j.readHead > JournalBufferSize {
		j.readHead++
		atomic.AddUint64(&j.droppedCount, 1)
	}
	event.Sequence = head
	j.buffer[head%JournalBufferSize] = event
	j.writeHead = head
	j.ringMu.Unlock()

	atomic.AddUint64(&j.totalCount, 1)
	return true
}

func (j *Journal) subjectLimiter(id string) *rate.Limiter {
	if l, ok := j.subjectLimiters.Load(id); ok {
		return l.(*rate.Limiter)
	}
	l := rate.NewLimiter(MaxJournalEventsPerSubject, MaxJournalEventsPerSubject/5)
	actual, _ := j.subjectLimiters.LoadOrStore(id, l)
	return actual.(*rate.Limiter)
}

// ResetSubjects forgets per-participant limiters, used on session switch
func (j *Journal) ResetSubjects() {
	j.subjectLimiters.Range(func(key, _ interface{}) bool {
		j.subjectLimiters.Delete(key)
		return true
	})
}

func (j *Journal) writerLoop() {
	defer j.writerWg.Done()

	ticker := time.NewTicker(JournalFlushInterval)
	defer ticker.Stop()

	batch := make([]JournalEvent, 0, JournalFlushSize)
	for {
		select {
		case <-j.stopChan:
			for {
				batch = j.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				j.flushBatch(batch)
			}
		case <-ticker.C:
			batch = j.collectBatch(batch[:0])
			if len(batch) > 0 {
				j.flushBatch(batch)
			}
		}
	}
}

// collectBatch drains up to JournalFlushSize pending events
func (j *Journal) collectBatch(batch []JournalEvent) []JournalEvent {
	j.ringMu.Lock()
	defer j.ringMu.Unlock()

	for j.readHead < j.writeHead && len(batch) < JournalFlushSize {
		j.readHead++
		batch = append(batch, j.buffer[j.readHead%JournalBufferSize])
	}
	return batch
}

// flushBatch appends events as newline-delimited JSON
func (j *Journal) flushBatch(batch []JournalEvent) {
	j.fileMu.Lock()
	defer j.fileMu.Unlock()

	if j.out == nil {
		return
	}
	for _, event := range batch {
		data, err := json.Marshal(event)
		if err != nil {
			continue
		}
		j.out.Write(data)
		j.out.WriteByte('\n')
	}
	j.out.Flush()
}

// Pending is the number of queued, unwritten events
func (j *Journal) Pending() uint64 {
	j.ringMu.Lock()
	defer j.ringMu.Unlock()
	return j.writeHead - j.readHead
}

// DroppedCount returns the number of events lost to limits or overflow
func (j *Journal) DroppedCount() uint64 {
	return atomic.LoadUint64(&j.droppedCount)
}

// TotalCount returns the number of accepted events
func (j *Journal) TotalCount() uint64 {
	return atomic.LoadUint64(&j.totalCount)
}

// Stats returns counters for the status endpoint
func (j *Journal) Stats() map[string]interface{} {
	return map[string]interface{}{
		"total":   j.TotalCount(),
		"dropped": j.DroppedCount(),
		"pending": j.Pending(),
		"running": j.running.Load(),
	}
}
