// Package version хранит сведения о сборке, заполняемые через -ldflags.
package version

import "fmt"

// ServiceName используется в логах, трассировке и health-ответах.
const ServiceName = "petshop"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info returns version information populated via -ldflags.
func Info() (v, c, d string) { return version, commit, date }

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

// GetCommit возвращает хэш коммита.
func GetCommit() string { return commit }

// GetDate возвращает дату сборки.
func GetDate() string { return date }

func String() string {
	return fmt.Sprintf("%s version=%s commit=%s date=%s", ServiceName, version, commit, date)
}
