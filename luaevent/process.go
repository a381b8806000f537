package luaevent

import (
	"os"
	"syscall"

	lua "github.com/yuin/gopher-lua"
	"golang.org/x/sys/unix"

	"github.com/Viet-ph/goevent/event"
)

// processTable lets scripts signal themselves the way the event tests do:
// process.kill("USR1", process.pid()).
func processTable(L *lua.LState) *lua.LTable {
	return L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"pid":  processPid,
		"kill": processKill,
	})
}

func processPid(L *lua.LState) int {
	L.Push(lua.LNumber(os.Getpid()))
	return 1
}

// process.kill(signal[, pid]) defaults to the current process.
func processKill(L *lua.LState) int {
	sig := checkSignal(L, 1)
	pid := L.OptInt(2, os.Getpid())
	if err := unix.Kill(pid, syscall.Signal(sig)); err != nil {
		L.RaiseError("kill %d: %v", pid, err)
	}
	return 0
}

// checkSignal accepts a signal number or a name with or without the SIG
// prefix.
func checkSignal(L *lua.LState, n int) int {
	switch v := L.Get(n).(type) {
	case lua.LNumber:
		return int(v)
	case lua.LString:
		sig, err := event.LookupSignal(string(v))
		if err != nil {
			L.ArgError(n, err.Error())
		}
		return sig
	default:
		L.TypeError(n, lua.LTString)
		return 0
	}
}
