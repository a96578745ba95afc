package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
)

func main() {
	// Default port
	port := "8081"

	// Check if port is provided as command line argument
	if len(os.Args) > 1 {
		port = os.Args[1]
	}
	issuer := fmt.Sprintf("http://localhost:%s", port)

	http.HandleFunc("/.well-known/openid-configuration", DiscoveryHandler(issuer))
	http.HandleFunc("/oauth/authorize", AuthorizeHandler)
	http.HandleFunc("/oauth/approve", ApproveHandler(issuer))
	http.HandleFunc("/oauth/deny", DenyHandler)

	addr := fmt.Sprintf(":%s", port)
	fmt.Printf("Go Mock Civic Auth running on %s...\n", issuer)
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatal(err)
	}
}
