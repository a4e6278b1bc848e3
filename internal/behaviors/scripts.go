package behaviors

// Each script resolves to the count of effects it had. They run with
// promise awaiting, so the async ones can pace themselves against the page.

const dismissOverlaysScript = `
(() => {
	const selectors = [
		'#onetrust-accept-btn-handler',
		'.cc-dismiss', '.cc-accept', '.cookie-accept',
		'[aria-label="Accept cookies"]', '[aria-label="Close"]',
		'[aria-label="Dismiss"]', '.modal-close', '.popup-close',
		'button[class*="consent"]', 'button[id*="accept"]',
	];
	let count = 0;
	for (const sel of selectors) {
		for (const el of document.querySelectorAll(sel)) {
			try { el.click(); count++; } catch (e) {}
		}
	}
	return count;
})()
`

const scrollToLoadScript = `
(async () => {
	const sleep = (ms) => new Promise(r => setTimeout(r, ms));
	const origY = window.scrollY;
	const maxSteps = 20;
	const stablePasses = 3;
	let steps = 0, stable = 0, lastHeight = document.body.scrollHeight;
	while (steps < maxSteps && stable < stablePasses) {
		window.scrollBy(0, window.innerHeight);
		steps++;
		await sleep(250);
		const h = document.body.scrollHeight;
		if (h === lastHeight) { stable++; } else { stable = 0; lastHeight = h; }
	}
	window.scrollTo(0, origY);
	return steps;
})()
`

const expandContentScript = `
(() => {
	let count = 0;
	for (const el of document.querySelectorAll('details:not([open])')) {
		try { el.open = true; count++; } catch (e) {}
	}
	const phrases = ['read more', 'show more', 'see more', 'view more', 'expand'];
	for (const el of document.querySelectorAll('a, button, span[role="button"]')) {
		const text = (el.innerText || '').trim().toLowerCase();
		if (phrases.some(p => text === p || text.startsWith(p + ' '))) {
			try { el.click(); count++; } catch (e) {}
		}
	}
	return count;
})()
`

const clickTabsScript = `
(() => {
	let count = 0;
	for (const list of document.querySelectorAll('[role="tablist"]')) {
		for (const tab of list.querySelectorAll('[role="tab"]:not([aria-selected="true"])')) {
			try { tab.click(); count++; } catch (e) {}
		}
	}
	return count;
})()
`

const carouselsScript = `
(async () => {
	const sleep = (ms) => new Promise(r => setTimeout(r, ms));
	const selectors = [
		'.carousel-control-next', '.slick-next', '.swiper-button-next',
		'[aria-label="Next slide"]', '[aria-label="Next"]',
	];
	const perCarousel = 10;
	let count = 0;
	for (const sel of selectors) {
		for (const btn of document.querySelectorAll(sel)) {
			for (let i = 0; i < perCarousel; i++) {
				if (btn.disabled || btn.offsetParent === null) break;
				try { btn.click(); count++; } catch (e) { break; }
				await sleep(150);
			}
		}
	}
	return count;
})()
`

const expandCommentsScript = `
(async () => {
	const sleep = (ms) => new Promise(r => setTimeout(r, ms));
	const phrases = ['load more comments', 'more comments', 'show more replies', 'view more replies'];
	const maxRounds = 10;
	let count = 0;
	for (let round = 0; round < maxRounds; round++) {
		let clicked = false;
		for (const el of document.querySelectorAll('a, button, span[role="button"]')) {
			const text = (el.innerText || '').trim().toLowerCase();
			if (phrases.some(p => text.includes(p))) {
				try { el.click(); count++; clicked = true; } catch (e) {}
			}
		}
		if (!clicked) break;
		await sleep(400);
	}
	return count;
})()
`

const infiniteScrollScript = `
(async () => {
	const sleep = (ms) => new Promise(r => setTimeout(r, ms));
	const maxPages = 5;
	let pages = 0, lastHeight = document.body.scrollHeight;
	for (let i = 0; i < maxPages; i++) {
		window.scrollTo(0, document.body.scrollHeight);
		await sleep(800);
		const h = document.body.scrollHeight;
		if (h <= lastHeight) break;
		lastHeight = h;
		pages++;
	}
	return pages;
})()
`
