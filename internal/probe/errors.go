package probe

import (
	"errors"
	"net"
	"os"
	"syscall"

	"github.com/go-sql-driver/mysql"
)

// classify converts an error from a probe step into a Failure, pulling out
// the MySQL error number, errno and failing operation where the error chain
// carries them. The caller supplies the stage and the attempted host:port.
func classify(err error, stage Stage, address string) Failure {
	f := Failure{
		Message: err.Error(),
		Stage:   stage,
		Address: address,
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		f.Code = myErr.Number
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		f.Op = opErr.Op
		if opErr.Addr != nil {
			f.Address = opErr.Addr.String()
		}
	}

	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		f.Op = sysErr.Syscall
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		f.Errno = int(errno)
	}

	return f
}
