package vp

import (
	"context"
	"fmt"
	"sort"

	"github.com/pilacorp/go-did-sdk/credential/common/crypto"
	"github.com/pilacorp/go-did-sdk/credential/common/schema"
	"github.com/pilacorp/go-did-sdk/credential/common/util"
	"github.com/pilacorp/go-did-sdk/credential/vc"
	"github.com/pilacorp/go-did-sdk/did"
	"github.com/pilacorp/go-did-sdk/diderrors"
	"github.com/pilacorp/go-did-sdk/internal/logfields"
	"github.com/pilacorp/go-did-sdk/keystore"
)

// Builder assembles and seals one presentation. After Seal every call fails
// with diderrors.ErrAlreadySealed.
type Builder struct {
	holder       vc.SignerDocument
	processor    *schema.Processor
	signKey      did.DIDURL
	realm        string
	nonce        string
	presentation *Presentation
	sealed       bool
}

// NewBuilder starts a presentation of the owner of holder.
func NewBuilder(holder vc.SignerDocument, opts ...PresentationOpt) *Builder {
	options := getOptions(opts...)

	return &Builder{
		holder:    holder,
		processor: options.processor,
		presentation: &Presentation{
			holder: holder.Subject(),
			types:  []string{DefaultPresentationType},
		},
	}
}

func (b *Builder) checkNotSealed() error {
	if b.sealed {
		return fmt.Errorf("presentation builder: %w", diderrors.ErrAlreadySealed)
	}

	return nil
}

// ID sets the optional presentation id, relative to the holder.
func (b *Builder) ID(id string) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	u, err := did.ParserFor(b.presentation.holder).ParseURLWithContext(b.presentation.holder, id)
	if err != nil {
		return fmt.Errorf("%w: invalid presentation id: %w", diderrors.ErrIllegalArgument, err)
	}

	b.presentation.id = u

	return nil
}

// Types adds presentation types.
func (b *Builder) Types(types ...string) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	for _, t := range types {
		if t == "" {
			return diderrors.Errorf(diderrors.ErrIllegalArgument, "empty presentation type")
		}

		found := false
		for _, existing := range b.presentation.types {
			if existing == t {
				found = true
				break
			}
		}
		if !found {
			b.presentation.types = append(b.presentation.types, t)
		}
	}

	return nil
}

// Credentials adds credentials of the holder.
func (b *Builder) Credentials(credentials ...*vc.Credential) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	for _, c := range credentials {
		if c == nil {
			return diderrors.Errorf(diderrors.ErrIllegalArgument, "nil credential")
		}
		if _, exists := b.presentation.Credential(c.ID()); exists {
			return diderrors.Errorf(diderrors.ErrIllegalArgument, "duplicated credential id: %s", c.ID())
		}

		b.presentation.credentials = append(b.presentation.credentials, c)
	}

	return nil
}

// Realm sets the domain the presentation is made for.
func (b *Builder) Realm(realm string) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}
	if realm == "" {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "empty realm")
	}

	b.realm = realm

	return nil
}

// Nonce sets the challenge of the verifier.
func (b *Builder) Nonce(nonce string) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}
	if nonce == "" {
		return diderrors.Errorf(diderrors.ErrIllegalArgument, "empty nonce")
	}

	b.nonce = nonce

	return nil
}

// SignKey sets the holder key used by Seal. It defaults to the default key
// of the holder document.
func (b *Builder) SignKey(id did.DIDURL) error {
	if err := b.checkNotSealed(); err != nil {
		return err
	}

	b.signKey = id

	return nil
}

// Seal signs the presentation and invalidates the builder.
func (b *Builder) Seal(ctx context.Context, ks keystore.KeyStore, password string) (*Presentation, error) {
	if err := b.checkNotSealed(); err != nil {
		return nil, err
	}

	if b.realm == "" || b.nonce == "" {
		return nil, diderrors.Errorf(diderrors.ErrIllegalState, "missing realm or nonce")
	}
	if password == "" {
		return nil, diderrors.Errorf(diderrors.ErrIllegalArgument, "password is empty")
	}

	p := b.presentation

	signKey := b.signKey
	if signKey.IsZero() {
		var ok bool
		if signKey, ok = b.holder.DefaultPublicKeyID(); !ok {
			return nil, diderrors.Errorf(diderrors.ErrInvalidKey, "holder %s has no default key", p.holder)
		}
	}
	if !b.holder.IsAuthenticationKey(signKey) {
		return nil, diderrors.Errorf(diderrors.ErrInvalidKey, "%s is not an authentication key of %s", signKey, p.holder)
	}
	if !ks.ContainsPrivateKey(signKey) {
		return nil, diderrors.Errorf(diderrors.ErrInvalidKey, "no private key for %s", signKey)
	}

	sort.Strings(p.types)
	sortCredentials(p.credentials)
	if b.processor.Enabled() {
		p.contexts = append([]string(nil), schema.CredentialContexts...)
	}
	p.created = util.Now()
	p.proof = Proof{
		Type:               crypto.KeyTypeSecp256k1,
		VerificationMethod: signKey,
		Realm:              b.realm,
		Nonce:              b.nonce,
	}

	data, err := p.SigningInput()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize presentation: %w", err)
	}

	sig, err := ks.Sign(ctx, signKey, password, data...)
	if err != nil {
		return nil, fmt.Errorf("failed to sign presentation: %w", err)
	}
	p.proof.Signature = crypto.EncodeSignature(sig)

	b.sealed = true
	b.presentation = nil

	logger.Debug("Sealed presentation", logfields.WithDID(p.holder), logfields.WithKeyID(signKey),
		logfields.WithCount(len(p.credentials)))

	return p, nil
}
