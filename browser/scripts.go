package browser

// Each script returns an object keyed by element id, with null for elements the page
// does not have. Polling uses textContent because it does not force a layout.

const snapshotScript = `() => {
	const read = (id) => {
		const el = document.getElementById(id);
		return el ? (el.textContent ?? "") : null;
	};
	return { status: read("status"), output: read("output"), summary: read("summary") };
}`

const resultsScript = `() => {
	const read = (id) => {
		const el = document.getElementById(id);
		return el ? (el.innerText ?? "") : null;
	};
	return { status: read("status"), output: read("output"), summary: read("summary") };
}`
