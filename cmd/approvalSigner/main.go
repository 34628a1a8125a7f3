package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "approval-signer",
		Usage: "Sign BentoBox master approvals, lending pair approvals and token permits",
		Description: `Builds EIP-712 typed-data digests for BentoBox approvals and token permits and signs
them with a local key or an AWS KMS key.

Every nonce signed over is recorded in a ledger (memory, badger or redis) so the same
nonce is never signed twice, even across processes sharing a redis ledger.`,
		Version: "1.0.0",
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			{
				Name:  "domain-separator",
				Usage: "Compute the domain separator a contract verifies against",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "kind",
						Usage:    "masterApproval or positionApproval for BentoBox, tokenPermit for a token",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "verifying-contract",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "check",
						Usage: "Compare with the contract's DOMAIN_SEPARATOR()",
					},
				},
				Action: domainSeparatorCommand,
			},
			{
				Name:  "digest",
				Usage: "Compute and optionally sign an approval for an explicit nonce, without a chain",
				Flags: append(requestFlags(),
					&cli.Uint64Flag{
						Name:  "nonce",
						Usage: "Nonce to sign over",
					},
					&cli.Uint64Flag{
						Name:  "deadline",
						Usage: "Permit deadline (unix seconds)",
					},
				),
				Action: digestCommand,
			},
			{
				Name:  "approve",
				Usage: "Sign an approval using the contract nonce and latest block time",
				Flags: append(requestFlags(),
					&cli.BoolFlag{
						Name:  "submit",
						Usage: "Submit the signed approval on chain",
					},
				),
				Action: approveCommand,
			},
			{
				Name:  "verify",
				Usage: "Recover the signer of a digest",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "digest",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "signature",
						Usage:    "65-byte r || s || v signature",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "expected",
						Usage: "Address the signature must recover to",
					},
				},
				Action: verifyCommand,
			},
			{
				Name:  "nonces",
				Usage: "Show a signer's contract nonce and the nonces recorded in the ledger",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "kind",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "signer",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "verifying-contract",
						Required: true,
					},
				},
				Action: noncesCommand,
			},
			{
				Name:  "release-nonce",
				Usage: "Release a signed but unsubmitted nonce from the ledger",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "kind",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "signer",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "verifying-contract",
						Required: true,
					},
					&cli.Uint64Flag{
						Name:     "nonce",
						Required: true,
					},
				},
				Action: releaseNonceCommand,
			},
			{
				Name:  "create-kms-key",
				Usage: "Create an AWS KMS secp256k1 key for signing approvals",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "alias",
						Usage: "Alias to create, without the alias/ prefix",
					},
				},
				Action: createKMSKeyCommand,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
