package reliability

import "github.com/ShadowCorp-Dev/nearconnect/internal/nearerr"

// retryableKinds are the default-predicate's network/RPC/timeout set.
var retryableKinds = map[nearerr.Kind]bool{
	nearerr.NetworkError:      true,
	nearerr.RPCError:          true,
	nearerr.ConnectionTimeout: true,
	nearerr.Timeout:           true,
	nearerr.TransportError:    true,
}

func isRetryableKind(err error) bool {
	e, ok := err.(*nearerr.Error)
	if !ok {
		return false
	}
	return retryableKinds[e.Kind]
}
