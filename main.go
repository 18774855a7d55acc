package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/jingkaihe/skillet/pkg/descriptor"
	"github.com/jingkaihe/skillet/pkg/skills"
)

func main() {
	ctx := context.Background()
	root, err := os.MkdirTemp("", "skillet-demo-*")
	if err != nil {
		logrus.WithError(err).Fatal("failed to create demo library root")
	}
	defer os.RemoveAll(root)

	manager, err := skills.New(root,
		skills.WithConfigDir(filepath.Join(root, "skill-config")),
	)
	if err != nil {
		logrus.WithError(err).Fatal("failed to create skill manager")
	}

	content := descriptor.Build("Demo Skill", "Shows the library API end to end", "# Demo\n\nEdit me.\n")
	err = manager.Write(ctx, descriptor.DirNameForSkill("Demo Skill"), content)
	if err != nil {
		logrus.WithError(err).Fatal("failed to write demo skill")
	}

	reconciled, err := manager.Reconcile(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("failed to reconcile library")
	}

	out, err := json.MarshalIndent(reconciled, "", "  ")
	if err != nil {
		logrus.WithError(err).Fatal("failed to render skills")
	}
	fmt.Println(string(out))
}
