// Package gitrepo drives the git executable for cloning, committing and
// pushing a proposal branch.
package gitrepo

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

type Client struct {
	// Token is sent as the basic-auth username with an empty password.
	Token       string
	AuthorName  string
	AuthorEmail string
	// Bin defaults to "git".
	Bin string
}

func (c *Client) bin() string {
	if c.Bin == "" {
		return "git"
	}
	return c.Bin
}

func (c *Client) globalArgs() []string {
	var args []string
	if c.Token != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(c.Token + ":"))
		args = append(args, "-c", "http.extraHeader=Authorization: Basic "+cred)
	}
	if c.AuthorName != "" {
		args = append(args, "-c", "user.name="+c.AuthorName)
	}
	if c.AuthorEmail != "" {
		args = append(args, "-c", "user.email="+c.AuthorEmail)
	}
	return args
}

func (c *Client) run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, c.bin(), append(c.globalArgs(), args...)...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("git %s: %w: %s", args[0], err, msg)
		}
		return fmt.Errorf("git %s: %w", args[0], err)
	}
	return nil
}

func (c *Client) Clone(ctx context.Context, url, dir string) error {
	return c.run(ctx, "", "clone", "--", url, dir)
}

func (c *Client) CheckoutNewBranch(ctx context.Context, dir, branch string) error {
	return c.run(ctx, dir, "checkout", "-b", branch)
}

func (c *Client) AddAll(ctx context.Context, dir string) error {
	return c.run(ctx, dir, "add", "--all", ".")
}

func (c *Client) Commit(ctx context.Context, dir, message string) error {
	return c.run(ctx, dir, "commit", "-m", message)
}

func (c *Client) Push(ctx context.Context, dir, remote, branch string) error {
	ref := "refs/heads/" + branch
	return c.run(ctx, dir, "push", remote, ref+":"+ref)
}
