package pathload

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/keithlinneman/pathload/internal/xerrors"
)

// S3API is the part of *s3.Client used for s3:// targets.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// SSMAPI is the part of *ssm.Client used for ssm:// targets.
type SSMAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

func splitBucketKey(loc string) (bucket, key string, err error) {
	bucket, key, ok := strings.Cut(loc, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", xerrors.Newf("s3 target must be s3://bucket/key (got s3://%s)", loc)
	}
	return bucket, key, nil
}

func (l *Loader) loadS3(ctx context.Context, loc string, o Options) (string, error) {
	bucket, key, err := splitBucketKey(loc)
	if err != nil {
		return "", err
	}
	if err := l.wait(ctx); err != nil {
		return "", err
	}

	out, err := l.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get S3 object s3://%s/%s", bucket, key)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return "", xerrors.Wrapf(err, "read S3 object s3://%s/%s", bucket, key)
	}
	label := o.Encoding
	if label == "" {
		label = charsetOf(aws.ToString(out.ContentType))
	}
	return decode(b, label)
}

// loadSSM returns the decrypted value of a parameter. ssm:///app/x names the
// hierarchical parameter /app/x, ssm://token names token.
func (l *Loader) loadSSM(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", xerrors.New("ssm target must name a parameter")
	}
	if err := l.wait(ctx); err != nil {
		return "", err
	}

	out, err := l.ssm.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "get SSM parameter %s", name)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", xerrors.Newf("SSM parameter %s has no value", name)
	}
	return *out.Parameter.Value, nil
}

func (l *Loader) wait(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}
	return xerrors.Wrap(l.limiter.Wait(ctx), "wait for rate limiter")
}
