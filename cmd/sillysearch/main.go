// Command sillysearch runs deep research threads from the terminal.
package main

func main() {
	Execute()
}
