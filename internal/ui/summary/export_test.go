package summary

import "time"

func (p *Printer) SetNow(now func() time.Time) {
	p.now = now
}
