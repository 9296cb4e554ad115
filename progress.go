package connect_archiver

import "sync"

// ProgressFunc receives the running byte count and the expected total (-1 when unknown).
type ProgressFunc func(downloaded int64, expected int64)

// Progress tracks bytes transferred for one download, forwarding every change to a callback. It implements
// io.Writer so it can sit at the end of an io.MultiWriter (ensure it is the last writer to avoid counting failed
// writes).
type Progress struct {
	mu         sync.Mutex
	callback   ProgressFunc
	expected   int64
	downloaded int64
}

// NewProgress creates a Progress with an unknown expected size. The callback may be nil.
func NewProgress(callback ProgressFunc) *Progress {
	return &Progress{callback: callback, expected: -1}
}

// SetExpectedBytes records how many bytes are expected in total; negative means unknown.
func (p *Progress) SetExpectedBytes(n int64) {
	p.mu.Lock()
	if n < 0 {
		n = -1
	}
	p.expected = n
	p.mu.Unlock()
	p.notify()
}

// AddDownloadedBytes increases how many bytes have been successfully downloaded so far.
func (p *Progress) AddDownloadedBytes(n int) {
	p.mu.Lock()
	p.downloaded += int64(n)
	p.mu.Unlock()
	p.notify()
}

// Progress returns the downloaded and expected bytes.
func (p *Progress) Progress() (int64, int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.downloaded, p.expected
}

func (p *Progress) Write(b []byte) (n int, err error) {
	n = len(b)
	p.AddDownloadedBytes(n)
	return n, nil
}

func (p *Progress) notify() {
	if p.callback != nil {
		p.callback(p.Progress())
	}
}
