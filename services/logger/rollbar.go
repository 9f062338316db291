package logsvc

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/masomo-console/core"
)

type RollbarLogger struct {
	std      *log.Logger
	hasToken bool

	mu     sync.RWMutex
	debug  bool
	person *core.Person
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)

	l := &RollbarLogger{std: std, hasToken: conf.RollbarToken != "", debug: conf.Debug}
	if conf.Operator != "" {
		l.SetPerson(core.Person{ID: conf.Operator, Username: conf.Operator})
	}
	return l
}

// Enable turns reporting to rollbar on or off; messages are always printed.
func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled && l.hasToken)
}

// SetDebug controls whether Debug messages are printed.
func (l *RollbarLogger) SetDebug(debug bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debug = debug
}

// SetPerson sets the default person reported with every message, e.g. the console operator.
func (l *RollbarLogger) SetPerson(p core.Person) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.person = &p
}

// expected fmt: msg | error, map[string]interface{}, core.Person
func (l *RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var person *core.Person
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		if p, ok := arg.(core.Person); ok {
			if person == nil { // only set one Person
				person = &p
			}
		} else {
			newArgs = append(newArgs, arg)
		}
	}

	if person == nil {
		l.mu.RLock()
		person = l.person
		l.mu.RUnlock()
	}
	if person != nil {
		rollbar.SetPerson(person.ID, person.Username, person.Email)
	} else {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l *RollbarLogger) print(level, msg string, args []interface{}) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(" ")
	b.WriteString(msg)
	for _, arg := range args {
		switch v := arg.(type) {
		case core.Person:
			continue
		case map[string]interface{}:
			b.WriteString(formatFields(v))
		case error:
			fmt.Fprintf(&b, " error=%q", v.Error())
		default:
			fmt.Fprintf(&b, " %+v", v)
		}
	}
	l.std.Println(b.String())
}

// formatFields renders fields as sorted key=value pairs.
func formatFields(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, fields[k])
	}
	return b.String()
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	l.mu.RLock()
	debug := l.debug
	l.mu.RUnlock()
	if !debug {
		return
	}
	rollbar.Debug(l.prepare(msg, args)...)
	l.print("DEBUG", msg, args)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.print("INFO", msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.print("WARN", msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.print("ERROR", msg, args)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.print("FATAL", msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
