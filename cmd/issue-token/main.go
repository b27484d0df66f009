// Command issue-token mints a bearer token for the upload API.
//
//	go run ./cmd/issue-token -user alice -roles uploader -ttl 1h
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mansoorceksport/upload-server/internal/service"
)

func main() {
	userID := flag.String("user", "", "user id to embed in the token")
	roles := flag.String("roles", "uploader", "comma separated roles")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	tokens, err := service.NewTokenService(os.Getenv("JWT_SECRET"), *ttl)
	if err != nil {
		log.Fatalf("Failed to create token service: %v", err)
	}

	var roleList []string
	for _, r := range strings.Split(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roleList = append(roleList, r)
		}
	}

	token, err := tokens.IssueUploadToken(*userID, roleList)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}
