package blaise

import (
	"fmt"
	"io"
	"sync"

	"github.com/pterm/pterm"
	"go.uber.org/atomic"
)

// Progress receives progress updates from the crop workers. Implementations must be safe for
// concurrent use.
type Progress interface {
	// Start is called once, before any worker runs, with the number of annotations per worker.
	Start(totals []int)
	// Step reports that worker finished one annotation, which produced crops crops.
	Step(worker, crops int)
	// Finish is called once after all workers have returned.
	Finish()
}

// NoProgress discards all updates.
type NoProgress struct{}

func (NoProgress) Start([]int)   {}
func (NoProgress) Step(int, int) {}
func (NoProgress) Finish()       {}

// LogProgress writes a status line for every tenth annotation of each worker.
type LogProgress struct {
	w  io.Writer
	mu sync.Mutex // Serialises writes to w.

	totals []int
	done   []atomic.Int64
	crops  []atomic.Int64
}

// NewLogProgress returns a LogProgress writing to w.
func NewLogProgress(w io.Writer) *LogProgress {
	return &LogProgress{w: w}
}

func (p *LogProgress) Start(totals []int) {
	p.totals = totals
	p.done = make([]atomic.Int64, len(totals))
	p.crops = make([]atomic.Int64, len(totals))
}

func (p *LogProgress) Step(worker, crops int) {
	i := p.done[worker].Inc() - 1
	sum := p.crops[worker].Add(int64(crops))
	if i%10 != 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "[%02d] Processing annotation %d of %d  (%d crops so far)\n",
		worker, i+1, p.totals[worker], sum)
}

func (p *LogProgress) Finish() {}

// Done returns the number of annotations processed by all workers so far.
func (p *LogProgress) Done() int64 {
	var n int64
	for i := range p.done {
		n += p.done[i].Load()
	}
	return n
}

// BarProgress renders one progress bar per worker.
type BarProgress struct {
	w     io.Writer
	mu    sync.Mutex
	multi *pterm.MultiPrinter
	bars  []*pterm.ProgressbarPrinter
}

// NewBarProgress returns a BarProgress rendering to w.
func NewBarProgress(w io.Writer) *BarProgress {
	return &BarProgress{w: w}
}

func (p *BarProgress) Start(totals []int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.multi = pterm.DefaultMultiPrinter.WithWriter(p.w)
	p.bars = make([]*pterm.ProgressbarPrinter, len(totals))
	for i, total := range totals {
		bar, err := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle(fmt.Sprintf("[%02d]", i)).
			WithShowElapsedTime(false).
			WithWriter(p.multi.NewWriter()).
			Start()
		if err != nil {
			log.Debugf("Cannot start progress bar %d: %v", i, err)
			continue
		}
		p.bars[i] = bar
	}
	if _, err := p.multi.Start(); err != nil {
		log.Debugf("Cannot start progress display: %v", err)
	}
}

func (p *BarProgress) Step(worker, _ int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if bar := p.bars[worker]; bar != nil {
		bar.Increment()
	}
}

func (p *BarProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, bar := range p.bars {
		if bar != nil {
			_, _ = bar.Stop()
		}
	}
	if p.multi != nil {
		_, _ = p.multi.Stop()
	}
}
