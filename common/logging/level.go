package logging

import (
	"strconv"
	"strings"

	"cloud.google.com/go/logging"
	"github.com/mcdexio/chain-collector/common/config"
)

type level int

const (
	firstLevel level = iota
	criticalLevel
	errorLevel
	warnLevel
	noticeLevel
	infoLevel
	debugLevel
	lastLevel
)

var levelNames = map[string]level{
	"critical": criticalLevel,
	"error":    errorLevel,
	"warn":     warnLevel,
	"notice":   noticeLevel,
	"info":     infoLevel,
	"debug":    debugLevel,
}

// defaultThresholdLevel reads SERVER_LOGLEVEL, either a number (1 critical .. 6 debug) or a name.
func defaultThresholdLevel() level {
	return parseLevel(config.GetString("SERVER_LOGLEVEL", "6"))
}

func parseLevel(s string) level {
	s = strings.ToLower(strings.TrimSpace(s))
	if lv, ok := levelNames[s]; ok {
		return lv
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return infoLevel
	}
	return level(n)
}

// IsValid returns if the l is valid.
func (l level) IsValid() bool {
	return l < lastLevel && l > firstLevel
}

func (l level) String() string {
	switch l {
	case criticalLevel:
		return " CRIT"
	case errorLevel:
		return "ERROR"
	case warnLevel:
		return " WARN"
	case noticeLevel:
		return " NOTE"
	case infoLevel:
		return " INFO"
	case debugLevel:
		return "DEBUG"
	}
	return ""
}

// Severity maps l to the cloud logging severity.
func (l level) Severity() logging.Severity {
	switch l {
	case criticalLevel:
		return logging.Critical
	case errorLevel:
		return logging.Error
	case warnLevel:
		return logging.Warning
	case noticeLevel:
		return logging.Notice
	case infoLevel:
		return logging.Info
	case debugLevel:
		return logging.Debug
	}
	return logging.Default
}
