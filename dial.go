package localsocket

import (
	"context"
	"net"

	"github.com/pkg/errors"
)

// Dial connects to a supervisor listening on the unix socket at path and
// wraps the connection as a Channel.
func Dial(ctx context.Context, path string, opt ...Option) (*Channel, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not connect to socket %s", path)
	}
	return NewChannel(conn, opt...), nil
}
