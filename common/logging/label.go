package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/ttacon/chalk"
)

type labelMap map[string]string

// LabelTag is the label holding the component tag.
const LabelTag = "tag"

const (
	labelPod         = "pod"
	labelProcessID   = "pid"
	labelGoroutineID = "go_id"
	labelFuncName    = "func_name"
	labelFileName    = "file_name"
	labelLineNumber  = "line_number"
)

var reservedLabels = map[string]bool{
	LabelTag:         true,
	labelPod:         true,
	labelProcessID:   true,
	labelGoroutineID: true,
	labelFuncName:    true,
	labelFileName:    true,
	labelLineNumber:  true,
}

var (
	plainStyle    = chalk.ResetColor.NewStyle()
	funcNameStyle = chalk.Cyan.NewStyle()
	fileStyle     = chalk.Magenta.NewStyle()
	lineStyle     = chalk.Yellow.NewStyle()
	contextStyle  = chalk.Blue.NewStyle()
)

func (m labelMap) with(key, value string) labelMap {
	out := make(labelMap, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	out[key] = value
	return out
}

func (m labelMap) addDebugInfo(skip int) {
	m[labelProcessID] = strconv.Itoa(os.Getpid())

	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	m[labelGoroutineID] = "-1"
	if fields := bytes.Fields(buf); len(fields) >= 2 {
		m[labelGoroutineID] = string(fields[1])
	}

	m[labelFuncName], m[labelFileName], m[labelLineNumber] = "???()", "???", "-1"
	if pc, file, line, ok := runtime.Caller(skip); ok {
		m[labelFuncName] = runtime.FuncForPC(pc).Name() + "()"
		m[labelFileName] = filepath.Base(file)
		m[labelLineNumber] = strconv.Itoa(line)
	}
}

func (m labelMap) debugInfo(styled bool) string {
	if !styled {
		return fmt.Sprintf("PID_%s:GoID_%s:%s:%s:%s",
			m[labelProcessID], m[labelGoroutineID], m[labelFuncName], m[labelFileName], m[labelLineNumber])
	}
	return fmt.Sprintf("%s%s:%s%s:%s:%s:%s",
		plainStyle.Style("PID_"), plainStyle.Style(m[labelProcessID]),
		plainStyle.Style("GoID_"), plainStyle.Style(m[labelGoroutineID]),
		funcNameStyle.Style(m[labelFuncName]),
		fileStyle.Style(m[labelFileName]),
		lineStyle.Style(m[labelLineNumber]))
}

// context renders user labels as "k=v" pairs sorted by key.
func (m labelMap) context(styled bool) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if !reservedLabels[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + m[k]
	}
	s := "[" + strings.Join(pairs, " ") + "]"
	if styled {
		return contextStyle.Style(s)
	}
	return s
}
