package logging

import (
	"context"

	"cloud.google.com/go/logging"
	"github.com/mcdexio/chain-collector/cache/cacher"
	"github.com/mcdexio/chain-collector/common/config"
)

var stackdriverOut = cacher.NewConst(func() *stackdriverOutput {
	o, err := newStackdriverOutput(logName)
	if err != nil {
		panic(err)
	}
	return o
})

// Stackdriver returns the shared cloud logging sink.
func Stackdriver() output {
	return stackdriverOut.Get()
}

type stackdriverOutput struct {
	client *logging.Client
	logger *logging.Logger
}

func newStackdriverOutput(name string) (*stackdriverOutput, error) {
	ctx := context.Background()
	client, err := logging.NewClient(ctx, config.GetString("SERVER_PROJECT_ID"))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx); err != nil {
		return nil, err
	}
	o := &stackdriverOutput{client: client}
	o.refreshLogger(name)
	return o, nil
}

func (o *stackdriverOutput) refreshLogger(name string) {
	if o.logger != nil || name == "" {
		return
	}
	o.logger = o.client.Logger(name)
}

func (o *stackdriverOutput) write(lv level, labels labelMap, msg string) {
	if o.logger == nil {
		return
	}
	o.logger.Log(logging.Entry{
		Severity: lv.Severity(),
		Labels:   labels,
		Payload:  removeColor(msg),
	})
}
