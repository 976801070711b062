// Package cognito authenticates users against an AWS Cognito user pool app
// client with the USER_PASSWORD_AUTH flow.
package cognito

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/gwlsn/docsauth/internal/auth"
	"github.com/gwlsn/docsauth/internal/logger"
)

// cognitoAPI is the subset of the Cognito client used here.
type cognitoAPI interface {
	InitiateAuth(ctx context.Context, in *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	GetUser(ctx context.Context, in *cip.GetUserInput, optFns ...func(*cip.Options)) (*cip.GetUserOutput, error)
}

type idTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// Config configures the provider.
type Config struct {
	Region       string
	ClientID     string
	ClientSecret string
	UserPoolID   string
	Endpoint     string
}

// Provider implements auth.Provider for Cognito.
type Provider struct {
	client       cognitoAPI
	verifier     idTokenVerifier
	clientID     string
	clientSecret string
}

// NewProvider creates a Cognito provider. The AWS SDK is configured without
// credentials; InitiateAuth and GetUser only need the app client and the
// user's tokens.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("cognito auth requires client_id")
	}
	if cfg.Region == "" {
		return nil, errors.New("cognito auth requires region")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := cip.NewFromConfig(awsCfg, func(o *cip.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	var verifier idTokenVerifier
	if cfg.UserPoolID != "" {
		issuer := IssuerURL(cfg.Region, cfg.UserPoolID)
		keySet := oidc.NewRemoteKeySet(ctx, issuer+"/.well-known/jwks.json")
		verifier = oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: cfg.ClientID})
	}

	return newProvider(client, verifier, cfg.ClientID, cfg.ClientSecret), nil
}

func newProvider(client cognitoAPI, verifier idTokenVerifier, clientID, clientSecret string) *Provider {
	return &Provider{
		client:       client,
		verifier:     verifier,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// IssuerURL returns the token issuer of a user pool.
func IssuerURL(region, userPoolID string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
}

// Name implements auth.Provider.
func (p *Provider) Name() string { return "cognito" }

// ValidateCredentials implements auth.Provider.
func (p *Provider) ValidateCredentials(creds auth.Credentials) error {
	return auth.CheckCredentialShape(creds)
}

// Authenticate runs InitiateAuth and fetches the user profile.
func (p *Provider) Authenticate(ctx context.Context, creds auth.Credentials) (*auth.Result, error) {
	params := map[string]string{
		"USERNAME": creds.Email,
		"PASSWORD": creds.Password,
	}
	if p.clientSecret != "" {
		params["SECRET_HASH"] = SecretHash(creds.Email, p.clientID, p.clientSecret)
	}

	out, err := p.client.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeUserPasswordAuth,
		ClientId:       aws.String(p.clientID),
		AuthParameters: params,
	})
	if err != nil {
		return nil, classify(err)
	}
	if out.ChallengeName != "" {
		return nil, auth.NewAuthenticationError(
			fmt.Sprintf("Additional verification required (%s)", out.ChallengeName), nil)
	}
	if out.AuthenticationResult == nil || aws.ToString(out.AuthenticationResult.AccessToken) == "" {
		return nil, errors.New("cognito returned no authentication result")
	}

	tokens := out.AuthenticationResult
	result := &auth.Result{
		AccessToken: aws.ToString(tokens.AccessToken),
		IDToken:     aws.ToString(tokens.IdToken),
		TokenType:   aws.ToString(tokens.TokenType),
		ExpiresIn:   int(tokens.ExpiresIn),
	}

	if p.verifier != nil && result.IDToken != "" {
		if _, err := p.verifier.Verify(ctx, result.IDToken); err != nil {
			return nil, fmt.Errorf("verify id token: %w", err)
		}
	}

	user, err := p.fetchUser(ctx, result.AccessToken)
	if err != nil {
		return nil, err
	}
	if user.Email == "" {
		user.Email = creds.Email
	}
	result.User = user
	return result, nil
}

func (p *Provider) fetchUser(ctx context.Context, accessToken string) (auth.User, error) {
	out, err := p.client.GetUser(ctx, &cip.GetUserInput{AccessToken: aws.String(accessToken)})
	if err != nil {
		return auth.User{}, fmt.Errorf("get user: %w", classify(err))
	}

	user := auth.User{
		Username:   aws.ToString(out.Username),
		Attributes: make(map[string]string, len(out.UserAttributes)),
	}
	for _, attr := range out.UserAttributes {
		name, value := aws.ToString(attr.Name), aws.ToString(attr.Value)
		switch name {
		case "sub":
			user.Sub = value
		case "email":
			user.Email = value
		case "email_verified":
			user.EmailVerified = strings.EqualFold(value, "true")
		case "name":
			user.Name = value
		default:
			user.Attributes[name] = value
		}
	}
	return user, nil
}

// SecretHash computes the SECRET_HASH parameter required by app clients
// that have a client secret.
func SecretHash(username, clientID, clientSecret string) string {
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

var rejectionDetails = map[string]string{
	"NotAuthorizedException":         "Incorrect username or password.",
	"UserNotFoundException":          "Incorrect username or password.",
	"UserNotConfirmedException":      "User is not confirmed.",
	"PasswordResetRequiredException": "Password reset required for the user.",
	"InvalidParameterException":      "Invalid login parameters.",
}

// classify turns user-caused Cognito errors into *auth.AuthenticationError
// and leaves everything else as an internal error.
func classify(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("cognito request: %w", err)
	}
	detail, ok := rejectionDetails[apiErr.ErrorCode()]
	if !ok {
		logger.Warn("Cognito request failed", "code", apiErr.ErrorCode(), "error", apiErr.ErrorMessage())
		return fmt.Errorf("cognito %s: %w", apiErr.ErrorCode(), err)
	}
	if msg := apiErr.ErrorMessage(); msg != "" && apiErr.ErrorCode() != "UserNotFoundException" {
		detail = msg
	}
	return auth.NewAuthenticationError(detail, err)
}
