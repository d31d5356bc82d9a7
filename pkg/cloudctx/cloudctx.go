// Package cloudctx derives a scoring.ExposureContext from live AWS S3
// bucket metadata, so a caller does not have to hand-build
// NormalizedContext fields for the common "is this bucket public,
// encrypted, logged" questions. Grounded on the pack's
// nelssec-qualys-dspm AWS connector (GetBucketEncryption,
// GetPublicAccessBlock, GetBucketACL), generalized from that project's
// full multi-service connector down to the handful of calls exposure
// scoring needs.
package cloudctx

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/MacAttak/riskscan/pkg/scoring"
)

// s3API is the narrow surface AWSContextBuilder depends on, so tests can
// substitute a fake without standing up real AWS credentials.
type s3API interface {
	GetBucketEncryption(ctx context.Context, in *s3.GetBucketEncryptionInput, opts ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error)
	GetPublicAccessBlock(ctx context.Context, in *s3.GetPublicAccessBlockInput, opts ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error)
	GetBucketAcl(ctx context.Context, in *s3.GetBucketAclInput, opts ...func(*s3.Options)) (*s3.GetBucketAclOutput, error)
	GetBucketVersioning(ctx context.Context, in *s3.GetBucketVersioningInput, opts ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error)
	GetBucketLogging(ctx context.Context, in *s3.GetBucketLoggingInput, opts ...func(*s3.Options)) (*s3.GetBucketLoggingOutput, error)
}

// AWSContextBuilder constructs scoring.ExposureContext values from S3
// bucket metadata for a single AWS account/region. accountID is the
// canonical owner id buckets are expected to belong to; a bucket owned
// by anyone else is flagged cross-account.
type AWSContextBuilder struct {
	client    s3API
	accountID string
}

// NewAWSContextBuilder loads default AWS credentials/region resolution
// (environment, shared config, IMDS — the same chain config.LoadDefaultConfig
// always uses) and returns a builder for the resolved account.
func NewAWSContextBuilder(ctx context.Context, accountID string) (*AWSContextBuilder, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("cloudctx: load AWS config: %w", err)
	}
	return &AWSContextBuilder{
		client:    s3.NewFromConfig(cfg),
		accountID: accountID,
	}, nil
}

// BuildContext derives a scoring.ExposureContext for bucketName. A failed
// encryption, public-access-block, versioning, or logging lookup (a bucket
// with no encryption configuration, no public-access-block, etc.) is the
// AWS SDK's normal way of saying "not configured," not an error for this
// function to propagate; a failed GetBucketAcl call is returned as an
// error. StalenessDays and ClassificationSource are left at the caller to fill
// in since they require data this builder's narrow S3 surface does not
// have (object listing timestamps, an external classification system).
func (b *AWSContextBuilder) BuildContext(ctx context.Context, bucketName string) (scoring.ExposureContext, error) {
	out := scoring.ExposureContext{
		Exposure:   scoring.ExposurePrivate,
		Encryption: scoring.EncryptionNone,
	}

	if encOutput, err := b.client.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{Bucket: aws.String(bucketName)}); err == nil && encOutput.ServerSideEncryptionConfiguration != nil {
		for _, rule := range encOutput.ServerSideEncryptionConfiguration.Rules {
			if rule.ApplyServerSideEncryptionByDefault == nil {
				continue
			}
			if rule.ApplyServerSideEncryptionByDefault.KMSMasterKeyID != nil {
				out.Encryption = scoring.EncryptionCustomerManaged
			} else {
				out.Encryption = scoring.EncryptionPlatform
			}
		}
	}

	exposure, ownerID, err := b.deriveExposure(ctx, bucketName)
	if err != nil {
		return out, err
	}
	out.Exposure = exposure
	out.CrossAccount = b.accountID != "" && ownerID != "" && ownerID != b.accountID

	if verOutput, err := b.client.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: aws.String(bucketName)}); err == nil {
		out.Versioning = verOutput.Status == types.BucketVersioningStatusEnabled
	}

	if logOutput, err := b.client.GetBucketLogging(ctx, &s3.GetBucketLoggingInput{Bucket: aws.String(bucketName)}); err == nil {
		out.AccessLogging = logOutput.LoggingEnabled != nil
	}

	return out, nil
}

// deriveExposure combines the public-access-block configuration with the
// bucket ACL grants to classify exposure into the four-valued scale.
// PublicAccessBlock fully enabled is treated as PRIVATE regardless of ACL
// grants (it overrides them); any all-users/authenticated-users grant
// with PublicAccessBlock absent or partial is OVER_EXPOSED or PUBLIC
// depending on grant scope.
func (b *AWSContextBuilder) deriveExposure(ctx context.Context, bucketName string) (scoring.Exposure, string, error) {
	aclOutput, err := b.client.GetBucketAcl(ctx, &s3.GetBucketAclInput{Bucket: aws.String(bucketName)})
	if err != nil {
		return scoring.ExposurePrivate, "", fmt.Errorf("cloudctx: get bucket ACL for %s: %w", bucketName, err)
	}
	ownerID := ""
	var grants []types.Grant
	if aclOutput != nil {
		grants = aclOutput.Grants
		if aclOutput.Owner != nil {
			ownerID = aws.ToString(aclOutput.Owner.ID)
		}
	}

	blocked := false
	if pabOutput, err := b.client.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{Bucket: aws.String(bucketName)}); err == nil && pabOutput.PublicAccessBlockConfiguration != nil {
		pab := pabOutput.PublicAccessBlockConfiguration
		blocked = aws.ToBool(pab.BlockPublicAcls) && aws.ToBool(pab.IgnorePublicAcls) &&
			aws.ToBool(pab.BlockPublicPolicy) && aws.ToBool(pab.RestrictPublicBuckets)
	}
	if blocked {
		return scoring.ExposurePrivate, ownerID, nil
	}

	allUsers, authUsers := false, false
	for _, grant := range grants {
		if grant.Grantee == nil || grant.Grantee.URI == nil {
			continue
		}
		switch aws.ToString(grant.Grantee.URI) {
		case "http://acs.amazonaws.com/groups/global/AllUsers":
			allUsers = true
		case "http://acs.amazonaws.com/groups/global/AuthenticatedUsers":
			authUsers = true
		}
	}
	switch {
	case allUsers:
		return scoring.ExposurePublic, ownerID, nil
	case authUsers:
		return scoring.ExposureOverExposed, ownerID, nil
	default:
		return scoring.ExposureInternal, ownerID, nil
	}
}

// StalenessDays computes staleness from a last-modified timestamp, the
// way a caller who already has an S3 HeadObject or ListObjects result can
// cheaply fill StalenessDays, which BuildContext leaves blank.
func StalenessDays(lastModified time.Time) int {
	if lastModified.IsZero() {
		return 0
	}
	days := int(time.Since(lastModified).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
