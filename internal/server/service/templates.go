package service

import (
	"fmt"
	"html"
	"strconv"

	"codepad/internal/core"
)

// Template describes a starting point offered when creating a project.
type Template struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

const (
	TemplateBlank = "blank"
	TemplateHTML5 = "html5"
)

// templates is the catalog shown to clients. Only blank and html5 have
// their own files; the others start out blank.
var templates = []Template{
	{ID: TemplateBlank, Name: "Blank Project", Description: "Start from scratch with an empty project"},
	{ID: TemplateHTML5, Name: "HTML5 Starter", Description: "Basic HTML5 template with CSS and JavaScript"},
	{ID: "landing", Name: "Landing Page", Description: "Modern landing page with hero section"},
	{ID: "portfolio", Name: "Portfolio", Description: "Personal portfolio website template"},
	{ID: "blog", Name: "Blog", Description: "Simple blog layout with articles"},
}

// Templates returns the template catalog.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// BuildTemplate returns the initial files for a project named name. Unknown
// template ids produce an empty tree.
func BuildTemplate(id, name string) core.Tree {
	if id != TemplateHTML5 {
		return core.NewTree()
	}
	escaped := html.EscapeString(name)
	return core.NewTree(
		core.NewFile("index.html", fmt.Sprintf(html5Index, escaped, escaped)),
		core.NewFile("styles.css", html5Styles),
		core.NewFile("script.js", "console.log("+strconv.Quote(name+" loaded!")+");"),
	)
}

const html5Index = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
    <link rel="stylesheet" href="styles.css">
</head>
<body>
    <h1>Welcome to %s</h1>
    <p>Start building your website here!</p>
    <script src="script.js"></script>
</body>
</html>`

const html5Styles = `body {
    font-family: Arial, sans-serif;
    margin: 0;
    padding: 20px;
    background-color: #f4f4f4;
}

h1 {
    color: #333;
    text-align: center;
}

p {
    text-align: center;
    font-size: 18px;
    color: #666;
}`

// DefaultProjectName is the name of the project seeded into an empty store.
const DefaultProjectName = "my-website"

func defaultProjectFiles() core.Tree {
	return core.NewTree(
		core.NewFile("index.html", defaultIndex),
		core.NewFile("styles.css", defaultStyles),
		core.NewFile("script.js", defaultScript),
		core.NewFolder("assets"),
	)
}

const defaultIndex = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>My Awesome Website</title>
    <link rel="stylesheet" href="styles.css">
</head>
<body>
    <header>
        <nav>
            <h1>Welcome to My Website</h1>
        </nav>
    </header>
    <main>
        <section class="hero">
            <h2>Build Amazing Websites</h2>
            <p>Start coding your dreams into reality.</p>
            <button>Get Started</button>
        </section>
    </main>
    <script src="script.js"></script>
</body>
</html>`

const defaultStyles = `* {
    margin: 0;
    padding: 0;
    box-sizing: border-box;
}

body {
    font-family: 'Arial', sans-serif;
    line-height: 1.6;
    color: #333;
}

header {
    background: #2c3e50;
    color: white;
    padding: 1rem 0;
}

nav h1 {
    text-align: center;
    font-size: 2rem;
}

main {
    padding: 2rem 0;
}

.hero {
    text-align: center;
    max-width: 800px;
    margin: 0 auto;
    padding: 0 1rem;
}

button {
    background: #3498db;
    color: white;
    border: none;
    padding: 1rem 2rem;
    border-radius: 5px;
    cursor: pointer;
}

button:hover {
    background: #2980b9;
}`

const defaultScript = `console.log('Website loaded successfully!');

document.addEventListener('DOMContentLoaded', function() {
    const button = document.querySelector('button');
    if (button) {
        button.addEventListener('click', function() {
            alert('Welcome to web development!');
        });
    }
});`
