package cloudctx

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacAttak/riskscan/pkg/scoring"
)

// fakeS3 is a minimal stand-in for s3API so tests don't need real AWS
// credentials, following the pack's preference for narrow interfaces
// over a full mock-the-SDK harness.
type fakeS3 struct {
	encryption *s3.GetBucketEncryptionOutput
	pab        *s3.GetPublicAccessBlockOutput
	acl        *s3.GetBucketAclOutput
	versioning *s3.GetBucketVersioningOutput
	logging    *s3.GetBucketLoggingOutput
	aclErr     error
}

func (f *fakeS3) GetBucketEncryption(ctx context.Context, in *s3.GetBucketEncryptionInput, opts ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error) {
	if f.encryption == nil {
		return nil, assert.AnError
	}
	return f.encryption, nil
}

func (f *fakeS3) GetPublicAccessBlock(ctx context.Context, in *s3.GetPublicAccessBlockInput, opts ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error) {
	if f.pab == nil {
		return nil, assert.AnError
	}
	return f.pab, nil
}

func (f *fakeS3) GetBucketAcl(ctx context.Context, in *s3.GetBucketAclInput, opts ...func(*s3.Options)) (*s3.GetBucketAclOutput, error) {
	return f.acl, f.aclErr
}

func (f *fakeS3) GetBucketVersioning(ctx context.Context, in *s3.GetBucketVersioningInput, opts ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error) {
	if f.versioning == nil {
		return nil, assert.AnError
	}
	return f.versioning, nil
}

func (f *fakeS3) GetBucketLogging(ctx context.Context, in *s3.GetBucketLoggingInput, opts ...func(*s3.Options)) (*s3.GetBucketLoggingOutput, error) {
	if f.logging == nil {
		return nil, assert.AnError
	}
	return f.logging, nil
}

func TestBuildContext_PublicUnencrypted(t *testing.T) {
	client := &fakeS3{
		acl: &s3.GetBucketAclOutput{
			Owner: &types.Owner{DisplayName: aws.String("owner")},
			Grants: []types.Grant{
				{Grantee: &types.Grantee{URI: aws.String("http://acs.amazonaws.com/groups/global/AllUsers")}, Permission: types.PermissionRead},
			},
		},
	}
	builder := &AWSContextBuilder{client: client}

	ctx, err := builder.BuildContext(context.Background(), "public-bucket")
	require.NoError(t, err)
	assert.Equal(t, scoring.ExposurePublic, ctx.Exposure)
	assert.Equal(t, scoring.EncryptionNone, ctx.Encryption)
}

func TestBuildContext_PrivateEncryptedBlocked(t *testing.T) {
	client := &fakeS3{
		encryption: &s3.GetBucketEncryptionOutput{
			ServerSideEncryptionConfiguration: &types.ServerSideEncryptionConfiguration{
				Rules: []types.ServerSideEncryptionRule{
					{ApplyServerSideEncryptionByDefault: &types.ServerSideEncryptionByDefault{SSEAlgorithm: types.ServerSideEncryptionAwsKms, KMSMasterKeyID: aws.String("arn:aws:kms:key")}},
				},
			},
		},
		pab: &s3.GetPublicAccessBlockOutput{
			PublicAccessBlockConfiguration: &types.PublicAccessBlockConfiguration{
				BlockPublicAcls:       aws.Bool(true),
				IgnorePublicAcls:      aws.Bool(true),
				BlockPublicPolicy:     aws.Bool(true),
				RestrictPublicBuckets: aws.Bool(true),
			},
		},
		versioning: &s3.GetBucketVersioningOutput{Status: types.BucketVersioningStatusEnabled},
		logging:    &s3.GetBucketLoggingOutput{LoggingEnabled: &types.LoggingEnabled{TargetBucket: aws.String("logs")}},
	}
	builder := &AWSContextBuilder{client: client}

	ctx, err := builder.BuildContext(context.Background(), "private-bucket")
	require.NoError(t, err)
	assert.Equal(t, scoring.ExposurePrivate, ctx.Exposure)
	assert.Equal(t, scoring.EncryptionCustomerManaged, ctx.Encryption)
	assert.True(t, ctx.Versioning)
	assert.True(t, ctx.AccessLogging)
}

func TestBuildContext_ForeignOwnerIsCrossAccount(t *testing.T) {
	client := &fakeS3{
		acl: &s3.GetBucketAclOutput{
			Owner: &types.Owner{ID: aws.String("someone-else")},
		},
	}
	builder := &AWSContextBuilder{client: client, accountID: "expected-owner"}

	ctx, err := builder.BuildContext(context.Background(), "bucket")
	require.NoError(t, err)
	assert.True(t, ctx.CrossAccount)
}

func TestBuildContext_AuthenticatedUsersIsOverExposed(t *testing.T) {
	client := &fakeS3{
		acl: &s3.GetBucketAclOutput{
			Grants: []types.Grant{
				{Grantee: &types.Grantee{URI: aws.String("http://acs.amazonaws.com/groups/global/AuthenticatedUsers")}, Permission: types.PermissionRead},
			},
		},
	}
	builder := &AWSContextBuilder{client: client}

	ctx, err := builder.BuildContext(context.Background(), "bucket")
	require.NoError(t, err)
	assert.Equal(t, scoring.ExposureOverExposed, ctx.Exposure)
}
