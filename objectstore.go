/*
Copyright 2025 Moebot Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package moebot

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/moebot-io/moebot/config"
)

// ObjectStore is the durable blob sink. Puts are idempotent: writing the
// same key twice overwrites in place.
type ObjectStore interface {
	Put(ctx context.Context, key string, payload []byte, contentType string) error
}

// R2Store implements ObjectStore against Cloudflare R2's S3-compatible API.
type R2Store struct {
	client *s3.Client
	bucket string
}

// NewR2Store builds an S3 client pointed at the configured R2 endpoint.
func NewR2Store(cnf *config.Configuration) (*R2Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cnf.R2.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cnf.R2.AccessKeyID, cnf.R2.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, errors.Wrap(err, "object store config failed")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cnf.R2.Endpoint)
		o.UsePathStyle = true
	})

	return &R2Store{client: client, bucket: cnf.R2.Bucket}, nil
}

// Put uploads the payload under the given key.
func (r *R2Store) Put(ctx context.Context, key string, payload []byte, contentType string) error {
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(contentType),
	})
	return errors.Wrapf(err, "object store upload failed for %s", key)
}
