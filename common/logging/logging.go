package logging

import "github.com/mcdexio/chain-collector/common/config"

var (
	logToStdout      = config.GetBool("SERVER_LOG_TO_STDOUT", true)
	logToStackdriver = config.GetBool("SERVER_LOG_TO_STACKDRIVER", false)

	hostName = config.GetString("HOSTNAME", "localhost")
	logName  string
)

// Initialize names the process log stream.
func Initialize(name string) {
	logName = name
	hostName = config.GetString("HOSTNAME", "localhost")
	if logToStackdriver {
		stackdriverOut.Get().refreshLogger(logName)
	}
}

// Finalize flushes and closes every loaded output.
func Finalize() {
	if stdout.IsLoaded() {
		stdout.Get().close()
		stdout.Clear()
	}
	if stackdriverOut.IsLoaded() {
		if err := stackdriverOut.Get().client.Close(); err != nil {
			panic(err)
		}
		stackdriverOut.Clear()
	}
}
