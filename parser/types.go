package parser

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/mcdexio/chain-collector/common/coins"
)

// Msg is one amino-JSON message of a tx.
type Msg struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Fee is the fee a tx paid. After SplitTaxFromFee it holds the gas part only.
type Fee struct {
	Amount coins.Coins `json:"amount"`
	Gas    string      `json:"gas"`
}

// StdTx is the signed tx body.
type StdTx struct {
	Type  string `json:"type"`
	Value struct {
		Msg           []*Msg          `json:"msg"`
		Fee           Fee             `json:"fee"`
		Signatures    json.RawMessage `json:"signatures,omitempty"`
		Memo          string          `json:"memo"`
		TimeoutHeight string          `json:"timeout_height,omitempty"`
	} `json:"value"`
}

// Attribute is an event attribute.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// Event is a log event.
type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

// Values returns the values of every attribute named key.
func (e Event) Values(key string) []string {
	var out []string
	for _, a := range e.Attributes {
		if a.Key == key {
			out = append(out, a.Value)
		}
	}
	return out
}

// LogPayload is the structured form of a message log. Old nodes send it as a JSON-encoded
// string, sometimes as free text, which is kept under "message".
type LogPayload map[string]string

// UnmarshalJSON implements json.Unmarshaler.
func (p *LogPayload) UnmarshalJSON(b []byte) error {
	out := LogPayload{}
	if len(b) > 0 && b[0] == '{' {
		var obj map[string]interface{}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		out.fill(obj)
		*p = out
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// null or something unexpected
		*p = out
		return nil
	}
	s = strings.TrimSpace(s)
	var obj map[string]interface{}
	if strings.HasPrefix(s, "{") && json.Unmarshal([]byte(s), &obj) == nil {
		out.fill(obj)
	} else if s != "" {
		out["message"] = s
	}
	*p = out
	return nil
}

func (p LogPayload) fill(obj map[string]interface{}) {
	for k, v := range obj {
		switch t := v.(type) {
		case string:
			p[k] = t
		case nil:
		default:
			b, _ := json.Marshal(t)
			p[k] = string(b)
		}
	}
}

// TxLog is the result of one message.
type TxLog struct {
	MsgIndex int        `json:"msg_index"`
	Success  *bool      `json:"success,omitempty"`
	Log      LogPayload `json:"log"`
	Events   []Event    `json:"events"`
}

// EventsOf returns the events of type typ.
func (l *TxLog) EventsOf(typ string) []Event {
	if l == nil {
		return nil
	}
	var out []Event
	for _, e := range l.Events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// TxInfo is a decoded tx as stored in tx.data.
type TxInfo struct {
	Height    string    `json:"height"`
	TxHash    string    `json:"txhash"`
	Code      int       `json:"code,omitempty"`
	Codespace string    `json:"codespace,omitempty"`
	RawLog    string    `json:"raw_log"`
	Logs      []*TxLog  `json:"logs"`
	GasWanted string    `json:"gas_wanted"`
	GasUsed   string    `json:"gas_used"`
	Tx        StdTx     `json:"tx"`
	Timestamp time.Time `json:"timestamp"`
}

// Success reports whether the tx was executed without error.
func (t *TxInfo) Success() bool { return t.Code == 0 }

// Msgs returns the tx messages.
func (t *TxInfo) Msgs() []*Msg { return t.Tx.Value.Msg }

// LogAt returns the log of message i, nil when absent.
func (t *TxInfo) LogAt(i int) *TxLog {
	if i < len(t.Logs) {
		return t.Logs[i]
	}
	return nil
}
