package studyguide

const systemInstruction = `You are a helpful assistant specialized in extracting and synthesizing concepts from course materials. Always provide clear and organized responses. Never provide any sort of introduction or meta-level commentary. Just get straight into the response and be as thorough as possible.`

const studyGuidePrompt = `Organize all concepts extracted from the files into a structured study guide. The output should be a JSON array of units. Each unit must contain a 'unit' (the title of the unit) and an 'overview' that summarizes the key ideas of that unit. Each unit should also have a 'sections' array. Every section within the unit must include a 'section_title', a 'narrative' explanation that details the concepts in that section, and a 'key_points' array that lists the essential takeaways. For each section, generate three quiz questions that test understanding of the material. Each quiz question should be a JSON object with a 'question', an array of four 'choices', and a 'correct_answer' that matches one of the choices. Additionally, at the end of each unit, generate a unit-level quiz consisting of ten quiz questions in the same format. Ensure that the units progressively build on each other to form a cohesive understanding of the course material. Use information primarily from the lecture slides, and supplement with additional details as needed.`
