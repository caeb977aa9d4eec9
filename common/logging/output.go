package logging

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mcdexio/chain-collector/cache/cacher"
)

var defaultOut = cacher.NewConst(func() output {
	o := multiOutput{}
	if logToStdout {
		o = append(o, Stdout())
	}
	if logToStackdriver {
		o = append(o, Stackdriver())
	}
	if len(o) == 0 {
		fmt.Println("no default logger specified")
	}
	return o
})

func defaultOutput() output {
	return defaultOut.Get()
}

// output is a log sink.
type output interface {
	write(lv level, labels labelMap, msg string)
}

type multiOutput []output

func (o multiOutput) write(lv level, labels labelMap, msg string) {
	switch len(o) {
	case 0:
		return
	case 1:
		o[0].write(lv, labels, msg)
		return
	}
	var wg sync.WaitGroup
	for _, out := range o {
		wg.Add(1)
		go func(out output) {
			defer wg.Done()
			out.write(lv, labels, msg)
		}(out)
	}
	wg.Wait()
}

// removeColor strips ANSI escape sequences.
func removeColor(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\033' {
			for ; i < len(s) && s[i] != 'm'; i++ {
			}
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
