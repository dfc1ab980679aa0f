package crypto

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKMS struct {
	encIn *kms.EncryptInput
	decIn *kms.DecryptInput
}

func (f *fakeKMS) Encrypt(_ context.Context, in *kms.EncryptInput, _ ...func(*kms.Options)) (*kms.EncryptOutput, error) {
	f.encIn = in
	return &kms.EncryptOutput{CiphertextBlob: append([]byte("sealed:"), in.Plaintext...)}, nil
}

func (f *fakeKMS) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	f.decIn = in
	return &kms.DecryptOutput{Plaintext: in.CiphertextBlob[len("sealed:"):]}, nil
}

// TestKMSCipherRoundTrip verifies the key id is passed through and the
// payload survives the round trip
func TestKMSCipherRoundTrip(t *testing.T) {
	api := &fakeKMS{}
	c := NewKMSCipher(api, "alias/lock-table")
	ctx := context.Background()

	sealed, err := c.Encrypt(ctx, []byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, "alias/lock-table", aws.ToString(api.encIn.KeyId))

	plain, err := c.Decrypt(ctx, sealed)
	require.NoError(t, err)
	assert.Equal(t, "alias/lock-table", aws.ToString(api.decIn.KeyId))
	assert.Equal(t, []byte("payload"), plain)
}
