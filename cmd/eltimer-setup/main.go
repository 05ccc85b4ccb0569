// Command eltimer-setup bootstraps the remote tier: it registers
// users, creates companies and grants memberships. Run it once per
// installation, then start the server with the resulting credentials.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"eltimer/internal/remote"
	"eltimer/internal/session"
)

func main() {
	_ = godotenv.Load()

	var (
		email     = flag.String("email", "", "user email")
		password  = flag.String("password", "", "user password")
		signup    = flag.Bool("signup", false, "register the user first")
		company   = flag.String("company", "", "create a company with this name")
		member    = flag.String("add-member", "", "email of a user to add to -company-id")
		companyID = flag.String("company-id", "", "existing company id for -add-member")
		role      = flag.String("role", session.RoleEmployee, "role for -add-member (admin or employee)")
	)
	flag.Parse()

	databaseURL := os.Getenv("REMOTE_DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("set REMOTE_DATABASE_URL")
	}
	if *email == "" || *password == "" {
		log.Fatal("both -email and -password are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := remote.NewClient(ctx, databaseURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if err := client.EnsureSchema(ctx); err != nil {
		log.Fatalf("prepare schema: %v", err)
	}

	auth := remote.NewAuth(client)
	if *signup {
		userID, err := auth.SignUp(ctx, *email, *password)
		if err != nil {
			log.Fatalf("sign up: %v", err)
		}
		fmt.Println("user registered:", userID)
	}

	userID, _, err := auth.SignIn(ctx, *email, *password)
	if err != nil {
		log.Fatalf("sign in: %v", err)
	}

	dir := remote.NewDirectory(client)

	if *company != "" {
		id, err := dir.CreateCompany(ctx, *company, userID)
		if err != nil {
			log.Fatalf("create company: %v", err)
		}
		fmt.Println("company created:", id)
		fmt.Println("start the server with REMOTE_COMPANY_ID=" + id)
	}

	if *member != "" {
		if *companyID == "" {
			log.Fatal("-add-member requires -company-id")
		}
		if *role != session.RoleAdmin && *role != session.RoleEmployee {
			log.Fatalf("unknown role %q", *role)
		}
		memberID, _, err := auth.SignIn(ctx, *member, promptPassword())
		if err != nil {
			log.Fatalf("member must sign in to prove the account exists: %v", err)
		}
		if err := dir.AddMember(ctx, *companyID, memberID, *role); err != nil {
			log.Fatalf("add member: %v", err)
		}
		fmt.Println("member added:", *member)
	}

	memberships, err := dir.ListMemberships(ctx, userID)
	if err != nil {
		log.Fatalf("list memberships: %v", err)
	}
	for _, m := range memberships {
		fmt.Printf("membership: company=%s role=%s\n", m.CompanyID, m.Role)
	}
}

func promptPassword() string {
	fmt.Print("member password: ")
	var pw string
	fmt.Scanln(&pw)
	return pw
}
