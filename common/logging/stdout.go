package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mcdexio/chain-collector/cache/cacher"
	"github.com/mcdexio/chain-collector/common/utils"
	"github.com/mcdexio/chain-collector/env"
	"github.com/ttacon/chalk"
)

// TimeFormat is the timestamp layout of stdout lines.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

var (
	levelStyles = map[level]chalk.Style{
		debugLevel:    chalk.ResetColor.NewStyle(),
		infoLevel:     chalk.Green.NewStyle(),
		noticeLevel:   chalk.Cyan.NewStyle(),
		warnLevel:     chalk.Yellow.NewStyle(),
		errorLevel:    chalk.Red.NewStyle(),
		criticalLevel: chalk.Magenta.NewStyle(),
	}
	timeStyle = chalk.ResetColor.NewStyle().WithTextStyle(chalk.Inverse)
	tagStyle  = chalk.ResetColor.NewStyle().WithBackground(chalk.Blue)

	stdout = cacher.NewConst(func() *stdOutput {
		return newStdOutput(os.Stdout, !env.IsCI())
	})
)

// Stdout returns the shared stdout sink.
func Stdout() output {
	return stdout.Get()
}

// stdOutput formats on the caller goroutine and writes from a single worker, so logging never
// blocks on the terminal.
type stdOutput struct {
	writer    io.Writer
	colored   bool
	queue     *utils.UnlimitedChannel[[]byte]
	stop      chan struct{}
	closeChan chan struct{}
}

func newStdOutput(w io.Writer, colored bool) *stdOutput {
	o := &stdOutput{
		writer:    w,
		colored:   colored,
		queue:     utils.NewUnlimitedChannel[[]byte](),
		stop:      make(chan struct{}),
		closeChan: make(chan struct{}),
	}
	go o.work()
	return o
}

func (o *stdOutput) write(lv level, labels labelMap, msg string) {
	line := o.format(time.Now(), lv, labels, msg)
	select {
	case o.queue.In() <- line:
	case <-o.stop:
	}
}

func (o *stdOutput) format(ts time.Time, lv level, labels labelMap, msg string) []byte {
	tsRaw := ts.Format(TimeFormat)
	svRaw := fmt.Sprintf("%6s", lv.String())
	tagRaw := fmt.Sprintf("%16s", labels[LabelTag])

	parts := []string{tsRaw, svRaw, tagRaw}
	if o.colored {
		parts = []string{timeStyle.Style(tsRaw), levelStyles[lv].Style(svRaw), tagStyle.Style(tagRaw)}
	}
	if ctx := labels.context(o.colored); ctx != "" {
		parts = append(parts, ctx)
	}
	if lv <= errorLevel {
		msg = labels.debugInfo(o.colored) + ": " + msg
	}
	if !o.colored {
		msg = removeColor(msg)
	}
	return []byte(strings.Join(append(parts, msg), " "))
}

func (o *stdOutput) work() {
	defer close(o.closeChan)
	for {
		select {
		case <-o.stop:
			o.queue.Close()
			<-o.queue.Done()
			for _, b := range o.queue.Dump() {
				_, _ = o.writer.Write(b)
			}
			return
		case b := <-o.queue.Out():
			if len(b) > 0 {
				_, _ = o.writer.Write(b)
			}
		}
	}
}

func (o *stdOutput) close() {
	close(o.stop)
	<-o.closeChan
}
