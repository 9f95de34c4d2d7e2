package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/pilacorp/go-did-sdk/credential/vc"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
)

// Resolver finds the current document of a DID. It returns
// diderrors.ErrDIDNotFound when the DID does not exist.
type Resolver interface {
	ResolveDocument(ctx context.Context, id did.DID) (*Document, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, id did.DID) (*Document, error)

// ResolveDocument implements Resolver.
func (f ResolverFunc) ResolveDocument(ctx context.Context, id did.DID) (*Document, error) {
	return f(ctx, id)
}

// ResolveControllers attaches the documents of all controllers that are not
// attached yet.
func (d *Document) ResolveControllers(ctx context.Context, resolver Resolver) error {
	for _, c := range d.controllers {
		if _, ok := d.controllerDocs[c]; ok {
			continue
		}

		doc, err := resolver.ResolveDocument(ctx, c)
		if err != nil {
			return fmt.Errorf("failed to resolve controller %s: %w", c, err)
		}
		if doc == nil {
			return fmt.Errorf("controller %s: %w", c, diderrors.ErrDIDNotFound)
		}

		if err := d.AttachControllerDocument(doc); err != nil {
			return err
		}
	}

	return nil
}

// VerifierResolver adapts a document resolver to the resolver used when
// verifying credentials and presentations. Documents of customized DIDs get
// their controllers resolved.
func VerifierResolver(r Resolver) vc.Resolver {
	return vc.ResolverFunc(func(ctx context.Context, id did.DID) (vc.VerifierDocument, error) {
		doc, err := r.ResolveDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			return nil, fmt.Errorf("%s: %w", id, diderrors.ErrDIDNotFound)
		}

		if err := doc.ResolveControllers(ctx, r); err != nil && !errors.Is(err, diderrors.ErrDIDNotFound) {
			return nil, err
		}

		return doc, nil
	})
}
