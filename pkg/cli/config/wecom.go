package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/minato-lab/leavesync/pkg/service/wecom"
)

type WeCom struct {
	corpID         string
	secret         string
	callbackToken  string
	encodingAESKey string
}

func (x *WeCom) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "wecom-corpid",
			Usage:       "Enterprise corp ID",
			Category:    "Upstream",
			Sources:     cli.EnvVars("WECOM_CORPID"),
			Destination: &x.corpID,
		},
		&cli.StringFlag{
			Name:        "wecom-secret",
			Usage:       "Approval application secret",
			Category:    "Upstream",
			Sources:     cli.EnvVars("WECOM_SECRET"),
			Destination: &x.secret,
		},
		&cli.StringFlag{
			Name:        "wecom-callback-token",
			Usage:       "Callback verification token (optional, enables push callbacks)",
			Category:    "Upstream",
			Sources:     cli.EnvVars("WECOM_CALLBACK_TOKEN"),
			Destination: &x.callbackToken,
		},
		&cli.StringFlag{
			Name:        "wecom-callback-aes-key",
			Usage:       "Callback EncodingAESKey, 43 characters (optional, enables push callbacks)",
			Category:    "Upstream",
			Sources:     cli.EnvVars("WECOM_CALLBACK_ENCODING_AES_KEY"),
			Destination: &x.encodingAESKey,
		},
	}
}

func (x WeCom) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("corpid", x.corpID),
		slog.Int("secret.len", len(x.secret)),
		slog.Bool("callback", x.IsCallbackConfigured()),
	)
}

// IsConfigured checks whether API credentials are complete
func (x *WeCom) IsConfigured() bool {
	return x.corpID != "" && x.secret != ""
}

// IsCallbackConfigured checks whether push-callback credentials are complete
func (x *WeCom) IsCallbackConfigured() bool {
	return x.callbackToken != "" && x.encodingAESKey != ""
}

// Configure builds the upstream API client
func (x *WeCom) Configure(opts ...wecom.Option) (wecom.Client, error) {
	if !x.IsConfigured() {
		return nil, goerr.Wrap(ErrInvalidConfig,
			"upstream credentials are required: set WECOM_CORPID and WECOM_SECRET")
	}
	return wecom.New(x.corpID, x.secret, opts...)
}

// ConfigureCodec builds the callback crypto codec, or returns nil when
// callbacks are not configured.
func (x *WeCom) ConfigureCodec() (*wecom.Codec, error) {
	if !x.IsCallbackConfigured() {
		return nil, nil
	}
	return wecom.NewCodec(x.callbackToken, x.encodingAESKey, x.corpID)
}
