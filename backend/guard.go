package backend

import (
	"context"

	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/idchain"
)

type resolvingKey struct{}

// enterResolve records id on the resolution chain carried by ctx. It fails
// if id is already being resolved further up the chain.
func enterResolve(ctx context.Context, id string) (context.Context, error) {
	chain, _ := ctx.Value(resolvingKey{}).([]string)

	for _, s := range chain {
		if s == id {
			return nil, diderrors.Errorf(diderrors.ErrRecursiveResolve, "%s is already being resolved", id)
		}
	}

	next := make([]string, len(chain), len(chain)+1)
	copy(next, chain)

	return context.WithValue(ctx, resolvingKey{}, append(next, id)), nil
}

// isDocumentOperation reports whether op carries a document in its payload.
func isDocumentOperation(op idchain.Operation) bool {
	return op == idchain.Create || op == idchain.Update || op == idchain.Transfer
}
